package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ZBcheng/pure-ollama/pkg/storage"
	"github.com/ZBcheng/pure-ollama/pkg/storage/sqlite"
	"github.com/ZBcheng/pure-ollama/pkg/storage/storagetest"
)

var _ = Describe("SQLiteDriver", func() {
	storagetest.DriverBehaviors(func() storage.Driver {
		d, err := sqlite.NewSQLiteDriver(context.Background(), ":memory:")
		Expect(err).NotTo(HaveOccurred())
		return d
	})

	Describe("NewSQLiteDriver", func() {
		It("creates a driver with file database", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "test.db")

			s, err := sqlite.NewSQLiteDriver(context.Background(), dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})

		It("keeps exchanges across reopen", func() {
			ctx := context.Background()
			dbPath := filepath.Join(GinkgoT().TempDir(), "history.db")
			ex := storagetest.NewExchange(storage.EndpointChat, "m", time.Minute)

			s, err := sqlite.NewSQLiteDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Put(ctx, ex)).To(Succeed())
			Expect(s.Close()).To(Succeed())

			s, err = sqlite.NewSQLiteDriver(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer s.Close()

			got, err := s.Get(ctx, ex.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Endpoint).To(Equal(storage.EndpointChat))
		})
	})
})
