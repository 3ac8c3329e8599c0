package storagedriver_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ZBcheng/pure-ollama/cmd/pollama/storagedriver"
	"github.com/ZBcheng/pure-ollama/pkg/config"
	"github.com/ZBcheng/pure-ollama/pkg/logger"
	"github.com/ZBcheng/pure-ollama/pkg/storage/inmemory"
	"github.com/ZBcheng/pure-ollama/pkg/storage/sqlite"
)

var _ = Describe("ResolveSQLitePath", func() {
	var (
		origHome string
		origXDG  string
		origCwd  string
		homeDir  string
		cwdDir   string
	)

	BeforeEach(func() {
		origHome = os.Getenv("HOME")
		origXDG = os.Getenv("XDG_DATA_HOME")
		var err error
		origCwd, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		homeDir = GinkgoT().TempDir()
		cwdDir = GinkgoT().TempDir()
		Expect(os.Setenv("HOME", homeDir)).To(Succeed())
		Expect(os.Setenv("XDG_DATA_HOME", "")).To(Succeed())
		Expect(os.Chdir(cwdDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Setenv("HOME", origHome)).To(Succeed())
		Expect(os.Setenv("XDG_DATA_HOME", origXDG)).To(Succeed())
		Expect(os.Chdir(origCwd)).To(Succeed())
	})

	It("prefers an explicit override", func() {
		path, err := storagedriver.ResolveSQLitePath(" /tmp/custom.db ")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("/tmp/custom.db"))
	})

	It("resolves ~/.pollama/pollama.db when present", func() {
		Expect(os.MkdirAll(filepath.Join(homeDir, ".pollama"), 0o755)).To(Succeed())
		dbPath := filepath.Join(homeDir, ".pollama", "pollama.db")
		Expect(os.WriteFile(dbPath, []byte(""), 0o600)).To(Succeed())

		path, err := storagedriver.ResolveSQLitePath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(dbPath))
	})

	It("prefers a database in the working directory over the home one", func() {
		Expect(os.MkdirAll(filepath.Join(homeDir, ".pollama"), 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(homeDir, ".pollama", "pollama.db"), []byte(""), 0o600)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(cwdDir, "pollama.db"), []byte(""), 0o600)).To(Succeed())

		path, err := storagedriver.ResolveSQLitePath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal("pollama.db"))
	})

	It("fails when nothing is found", func() {
		_, err := storagedriver.ResolveSQLitePath("")
		Expect(errors.Is(err, storagedriver.ErrNoDatabase)).To(BeTrue())
	})
})

var _ = Describe("Open", func() {
	ctx := context.Background()

	It("falls back to memory", func() {
		driver, err := storagedriver.Open(ctx, config.StorageConfig{}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(driver.Close)
		Expect(driver).To(BeAssignableToTypeOf(&inmemory.Driver{}))
	})

	It("opens sqlite when a path is set", func() {
		path := filepath.Join(GinkgoT().TempDir(), "pollama.db")
		driver, err := storagedriver.Open(ctx, config.StorageConfig{SQLitePath: path}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(driver.Close)
		Expect(driver).To(BeAssignableToTypeOf(&sqlite.SQLiteDriver{}))
	})
})

var _ = Describe("OpenExisting", func() {
	It("never falls back to memory", func() {
		origCwd, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		origHome := os.Getenv("HOME")
		origXDG := os.Getenv("XDG_DATA_HOME")
		DeferCleanup(func() {
			_ = os.Chdir(origCwd)
			_ = os.Setenv("HOME", origHome)
			_ = os.Setenv("XDG_DATA_HOME", origXDG)
		})
		Expect(os.Setenv("XDG_DATA_HOME", "")).To(Succeed())
		Expect(os.Chdir(GinkgoT().TempDir())).To(Succeed())
		Expect(os.Setenv("HOME", GinkgoT().TempDir())).To(Succeed())

		_, err = storagedriver.OpenExisting(context.Background(), config.StorageConfig{})
		Expect(errors.Is(err, storagedriver.ErrNoDatabase)).To(BeTrue())
	})
})
