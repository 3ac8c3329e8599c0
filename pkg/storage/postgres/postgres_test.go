package postgres_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ZBcheng/pure-ollama/pkg/storage"
	"github.com/ZBcheng/pure-ollama/pkg/storage/postgres"
	"github.com/ZBcheng/pure-ollama/pkg/storage/storagetest"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("POLLAMA_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("POLLAMA_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = Describe("Driver", func() {
	storagetest.DriverBehaviors(func() storage.Driver {
		ctx := context.Background()

		d, err := postgres.NewDriver(ctx, connStr())
		Expect(err).NotTo(HaveOccurred())

		// Clean all exchanges before each test for isolation.
		Expect(d.Driver.Exec(ctx, "DELETE FROM exchanges", []any{}, nil)).To(Succeed())
		return d
	})

	It("fails fast on an unreachable server", func() {
		_, err := postgres.NewDriver(context.Background(), "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")
		Expect(err).To(MatchError(ContainSubstring("failed to ping database")))
	})
})
