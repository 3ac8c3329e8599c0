package chatcmder_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	chatcmder "github.com/ZBcheng/pure-ollama/cmd/pollama/chat"
	"github.com/ZBcheng/pure-ollama/pkg/dotdir"
	"github.com/ZBcheng/pure-ollama/pkg/ollama"
)

// fakeOllama answers every chat turn with "reply N", streamed in two chunks.
type fakeOllama struct {
	mu       sync.Mutex
	requests []ollama.ChatRequest
	fail     bool
}

func (f *fakeOllama) snapshot() []ollama.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ollama.ChatRequest(nil), f.requests...)
}

func (f *fakeOllama) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req ollama.ChatRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	f.requests = append(f.requests, req)
	n := len(f.requests)
	fail := f.fail
	f.mu.Unlock()

	if fail {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"out of memory"}`)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	fmt.Fprintf(w, `{"model":%q,"created_at":"t0","done":false,"message":{"role":"assistant","content":"reply "}}`+"\n", req.Model)
	fmt.Fprintf(w, `{"model":%q,"created_at":"t1","done":true,"message":{"role":"assistant","content":"%d"},"eval_count":2}`+"\n", req.Model, n)
}

func newRoot() *cobra.Command {
	root := &cobra.Command{Use: "pollama", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().BoolP("debug", "d", false, "")
	root.PersistentFlags().String("config-dir", "", "")
	root.AddCommand(chatcmder.NewChatCmd())
	return root
}

var _ = Describe("chat command", func() {
	var (
		fake      *fakeOllama
		server    *httptest.Server
		configDir string
		out       bytes.Buffer
	)

	BeforeEach(func() {
		fake = &fakeOllama{}
		server = httptest.NewServer(fake)
		configDir = GinkgoT().TempDir()
		out.Reset()
	})

	AfterEach(func() {
		server.Close()
	})

	execute := func(stdin string, args ...string) error {
		cmd := newRoot()
		cmd.SetOut(&out)
		cmd.SetErr(io.Discard)
		cmd.SetIn(strings.NewReader(stdin))
		cmd.SetArgs(append([]string{"chat", "--config-dir", configDir, "--base-url", server.URL}, args...))
		return cmd.Execute()
	}

	loadSession := func() *dotdir.ChatSession {
		GinkgoHelper()
		session, err := dotdir.NewManager().LoadSession(configDir)
		Expect(err).NotTo(HaveOccurred())
		return session
	}

	It("sends the growing conversation on every turn", func() {
		Expect(execute("hello\n\nhow are you?\n/exit\n", "--system", "be nice")).To(Succeed())

		requests := fake.snapshot()
		Expect(requests).To(HaveLen(2))
		Expect(requests[0].Messages).To(Equal([]ollama.Message{
			{Role: ollama.RoleSystem, Content: "be nice"},
			{Role: ollama.RoleUser, Content: "hello"},
		}))
		Expect(requests[1].Messages).To(HaveLen(4))
		Expect(requests[1].Messages[2]).To(Equal(ollama.Message{Role: ollama.RoleAssistant, Content: "reply 1"}))
		Expect(requests[1].Messages[3].Content).To(Equal("how are you?"))

		Expect(out.String()).To(ContainSubstring("reply 1\n"))
		Expect(out.String()).To(ContainSubstring("reply 2\n"))
	})

	It("saves the conversation after each turn", func() {
		Expect(execute("hello\n")).To(Succeed())

		session := loadSession()
		Expect(session).NotTo(BeNil())
		Expect(session.Model).To(Equal("llama3.2"))
		Expect(session.Messages).To(Equal([]dotdir.SessionMessage{
			{Role: "user", Content: "hello"},
			{Role: "assistant", Content: "reply 1"},
		}))
	})

	It("resumes the saved conversation and its model", func() {
		Expect(dotdir.NewManager().SaveSession(&dotdir.ChatSession{
			Model: "mistral",
			Messages: []dotdir.SessionMessage{
				{Role: "user", Content: "earlier"},
				{Role: "assistant", Content: "answer"},
				{Role: "robot", Content: "skipped"},
			},
		}, configDir)).To(Succeed())

		Expect(execute("again\n", "--resume")).To(Succeed())

		requests := fake.snapshot()
		Expect(requests).To(HaveLen(1))
		Expect(requests[0].Model).To(Equal("mistral"))
		Expect(requests[0].Messages).To(HaveLen(3))
		Expect(requests[0].Messages[0].Content).To(Equal("earlier"))
		Expect(out.String()).To(ContainSubstring("Resuming conversation"))
	})

	It("prefers an explicit model over the saved one", func() {
		Expect(dotdir.NewManager().SaveSession(&dotdir.ChatSession{Model: "mistral"}, configDir)).To(Succeed())

		Expect(execute("hi\n", "--resume", "-m", "phi3")).To(Succeed())
		Expect(fake.snapshot()[0].Model).To(Equal("phi3"))
	})

	It("clears the conversation with /clear", func() {
		Expect(execute("hello\n/clear\nfresh\n/bye\n")).To(Succeed())

		requests := fake.snapshot()
		Expect(requests).To(HaveLen(2))
		Expect(requests[1].Messages).To(Equal([]ollama.Message{{Role: ollama.RoleUser, Content: "fresh"}}))
		Expect(loadSession().Messages).To(HaveLen(2))
	})

	It("reports a failed turn and drops it from the history", func() {
		fake.fail = true
		Expect(execute("hello\n")).To(Succeed())

		Expect(out.String()).To(ContainSubstring("out of memory"))
		Expect(loadSession()).To(BeNil())
	})
})
