package createcmder_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	createcmder "github.com/ZBcheng/pure-ollama/cmd/pollama/create"
	"github.com/ZBcheng/pure-ollama/pkg/ollama"
)

const progressBody = `{"status":"reading model metadata"}
{"status":"creating system layer"}
{"status":"success"}
`

type fakeOllama struct {
	mu       sync.Mutex
	requests []ollama.CreateModelRequest
}

func (f *fakeOllama) snapshot() []ollama.CreateModelRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ollama.CreateModelRequest(nil), f.requests...)
}

func (f *fakeOllama) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req ollama.CreateModelRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	switch req.Name {
	case "unfinished":
		_, _ = io.WriteString(w, `{"status":"reading model metadata"}`+"\n")
	case "broken":
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"no FROM line"}`)
	default:
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = io.WriteString(w, progressBody)
	}
}

func newRoot() *cobra.Command {
	root := &cobra.Command{Use: "pollama", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().BoolP("debug", "d", false, "")
	root.PersistentFlags().String("config-dir", "", "")
	root.AddCommand(createcmder.NewCreateCmd())
	return root
}

var _ = Describe("create command", func() {
	var (
		fake      *fakeOllama
		server    *httptest.Server
		configDir string
		modelfile string
	)

	BeforeEach(func() {
		fake = &fakeOllama{}
		server = httptest.NewServer(fake)
		configDir = GinkgoT().TempDir()
		modelfile = filepath.Join(GinkgoT().TempDir(), "Modelfile")
		Expect(os.WriteFile(modelfile, []byte("FROM llama3.2\nSYSTEM You are Mario."), 0o600)).To(Succeed())
	})

	AfterEach(func() {
		server.Close()
	})

	newCmd := func(out io.Writer, args ...string) *cobra.Command {
		cmd := newRoot()
		cmd.SetOut(out)
		cmd.SetErr(io.Discard)
		cmd.SetArgs(append([]string{"create", "--config-dir", configDir, "--base-url", server.URL, "-f", modelfile}, args...))
		return cmd
	}

	It("sends the Modelfile and waits for success", func() {
		var out bytes.Buffer
		Expect(newCmd(&out, "mario", "--verbose").Execute()).To(Succeed())

		requests := fake.snapshot()
		Expect(requests).To(HaveLen(1))
		Expect(requests[0].Name).To(Equal("mario"))
		Expect(requests[0].Modelfile).To(Equal("FROM llama3.2\nSYSTEM You are Mario."))

		Expect(out.String()).To(ContainSubstring("Creating mario"))
		Expect(out.String()).To(ContainSubstring("creating system layer"))
	})

	It("fails when the server stops before success", func() {
		var out bytes.Buffer
		err := newCmd(&out, "unfinished").Execute()
		Expect(err).To(MatchError(`model creation ended with "reading model metadata"`))
	})

	It("surfaces the server's error body", func() {
		var out bytes.Buffer
		err := newCmd(&out, "broken").Execute()

		var oerr *ollama.Error
		Expect(errors.As(err, &oerr)).To(BeTrue())
		Expect(oerr.Detail).To(Equal(`{"error":"no FROM line"}`))
	})

	It("fails on a missing Modelfile", func() {
		Expect(os.Remove(modelfile)).To(Succeed())

		var out bytes.Buffer
		Expect(newCmd(&out, "mario").Execute()).To(MatchError(ContainSubstring("reading modelfile")))
		Expect(fake.snapshot()).To(BeEmpty())
	})

	It("re-creates the model when the Modelfile changes with --watch", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			done <- newCmd(GinkgoWriter, "mario", "--watch").ExecuteContext(ctx)
		}()

		Eventually(fake.snapshot).Should(HaveLen(1))

		Expect(os.WriteFile(modelfile, []byte("FROM llama3.2\nSYSTEM You are Luigi."), 0o600)).To(Succeed())

		Eventually(func() string {
			requests := fake.snapshot()
			return requests[len(requests)-1].Modelfile
		}).Should(ContainSubstring("Luigi"))

		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})
})
