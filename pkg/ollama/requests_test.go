package ollama_test

import (
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ZBcheng/pure-ollama/pkg/ollama"
)

func marshalToMap(v any) map[string]any {
	GinkgoHelper()

	raw, err := json.Marshal(v)
	Expect(err).NotTo(HaveOccurred())
	Expect(string(raw)).NotTo(ContainSubstring("null"))

	var out map[string]any
	Expect(json.Unmarshal(raw, &out)).To(Succeed())
	return out
}

var _ = Describe("Requests", func() {
	Describe("Options", func() {
		It("reports zero only when nothing is set", func() {
			Expect(ollama.Options{}.IsZero()).To(BeTrue())
			Expect(ollama.Options{Stop: []string{}}.IsZero()).To(BeTrue())
			Expect(ollama.Options{Seed: ollama.Ptr(0)}.IsZero()).To(BeFalse())
		})

		It("omits an empty options block entirely", func() {
			body := marshalToMap(&ollama.GenerateRequest{Model: "m", Prompt: "hi"})
			Expect(body).NotTo(HaveKey("options"))
			Expect(body).To(HaveLen(2))

			body = marshalToMap(&ollama.ChatRequest{Model: "m", Messages: []ollama.Message{{Role: ollama.RoleUser}}})
			Expect(body).NotTo(HaveKey("options"))
		})

		It("emits set options by their wire names", func() {
			opts := ollama.Options{
				Mirostat:      ollama.Ptr(1),
				MirostatEta:   ollama.Ptr(0.1),
				MirostatTau:   ollama.Ptr(5.0),
				NumCtx:        ollama.Ptr(4096),
				RepeatLastN:   ollama.Ptr(64),
				RepeatPenalty: ollama.Ptr(1.1),
				Temperature:   ollama.Ptr(0.8),
				Seed:          ollama.Ptr(42),
				Stop:          []string{"AI assistant:"},
				TfsZ:          ollama.Ptr(1.0),
				NumPredict:    ollama.Ptr(128),
				TopK:          ollama.Ptr(40),
				TopP:          ollama.Ptr(0.9),
			}
			body := marshalToMap(&ollama.GenerateRequest{Model: "m", Options: opts})

			options, ok := body["options"].(map[string]any)
			Expect(ok).To(BeTrue())
			Expect(options).To(HaveLen(13))
			for _, key := range []string{
				"mirostat", "mirostat_eta", "mirostat_tau", "num_ctx", "repeat_last_n",
				"repeat_penalty", "temperature", "seed", "stop", "tfs_z", "num_predict", "top_k", "top_p",
			} {
				Expect(options).To(HaveKey(key))
			}
		})

		It("keeps explicit zero values", func() {
			body := marshalToMap(&ollama.GenerateRequest{Model: "m", Options: ollama.Options{Temperature: ollama.Ptr(0.0)}})
			Expect(body["options"]).To(Equal(map[string]any{"temperature": 0.0}))
		})

		DescribeTable("Validate rejects out-of-range values",
			func(opts ollama.Options, detail string) {
				err := opts.Validate()
				Expect(errors.Is(err, ollama.ErrInvalidParameter)).To(BeTrue())
				Expect(err).To(MatchError(ContainSubstring(detail)))
			},
			Entry("mirostat", ollama.Options{Mirostat: ollama.Ptr(3)}, "mirostat"),
			Entry("num_ctx", ollama.Options{NumCtx: ollama.Ptr(0)}, "num_ctx"),
			Entry("repeat_last_n", ollama.Options{RepeatLastN: ollama.Ptr(-2)}, "repeat_last_n"),
			Entry("temperature", ollama.Options{Temperature: ollama.Ptr(-0.5)}, "temperature"),
			Entry("num_predict", ollama.Options{NumPredict: ollama.Ptr(-3)}, "num_predict"),
			Entry("top_k", ollama.Options{TopK: ollama.Ptr(-1)}, "top_k"),
			Entry("top_p", ollama.Options{TopP: ollama.Ptr(1.5)}, "top_p"),
			Entry("stop", ollama.Options{Stop: []string{""}}, "stop[0]"),
		)

		It("accepts documented sentinel values", func() {
			opts := ollama.Options{RepeatLastN: ollama.Ptr(-1), NumPredict: ollama.Ptr(-2), Mirostat: ollama.Ptr(0)}
			Expect(opts.Validate()).To(Succeed())
		})
	})

	Describe("GenerateRequest", func() {
		It("streams unless stream is explicitly false", func() {
			Expect((&ollama.GenerateRequest{}).Streaming()).To(BeTrue())
			Expect((&ollama.GenerateRequest{Stream: ollama.Ptr(true)}).Streaming()).To(BeTrue())
			Expect((&ollama.GenerateRequest{Stream: ollama.Ptr(false)}).Streaming()).To(BeFalse())
		})

		It("serializes the advanced fields", func() {
			body := marshalToMap(&ollama.GenerateRequest{
				Model:     "m",
				Prompt:    "hi",
				Images:    []string{"aGVsbG8="},
				Format:    ollama.FormatJSON,
				System:    "be brief",
				Template:  "{{ .Prompt }}",
				Context:   []int{1, 2},
				Stream:    ollama.Ptr(false),
				Raw:       ollama.Ptr(true),
				KeepAlive: "5m",
			})
			Expect(body).To(HaveKeyWithValue("images", []any{"aGVsbG8="}))
			Expect(body).To(HaveKeyWithValue("format", "json"))
			Expect(body).To(HaveKeyWithValue("system", "be brief"))
			Expect(body).To(HaveKeyWithValue("template", "{{ .Prompt }}"))
			Expect(body).To(HaveKeyWithValue("context", []any{1.0, 2.0}))
			Expect(body).To(HaveKeyWithValue("stream", false))
			Expect(body).To(HaveKeyWithValue("raw", true))
			Expect(body).To(HaveKeyWithValue("keep_alive", "5m"))
		})

		It("requires a model", func() {
			err := (&ollama.GenerateRequest{Prompt: "hi"}).Validate()
			Expect(ollama.KindOf(err)).To(Equal(ollama.KindInvalidParameter))
		})

		It("rejects unknown formats", func() {
			err := (&ollama.GenerateRequest{Model: "m", Format: "yaml"}).Validate()
			Expect(err).To(MatchError(ContainSubstring(`unsupported format "yaml"`)))
		})
	})

	Describe("ChatRequest", func() {
		It("requires messages", func() {
			err := (&ollama.ChatRequest{Model: "m"}).Validate()
			Expect(err).To(MatchError(ContainSubstring("at least one message")))
		})

		It("rejects unknown roles", func() {
			err := (&ollama.ChatRequest{Model: "m", Messages: []ollama.Message{{Role: "robot", Content: "beep"}}}).Validate()
			Expect(errors.Is(err, ollama.ErrInvalidParameter)).To(BeTrue())
			Expect(err).To(MatchError(ContainSubstring("messages[0]")))
		})

		It("validates its options", func() {
			err := (&ollama.ChatRequest{
				Model:    "m",
				Messages: []ollama.Message{{Role: ollama.RoleUser, Content: "hi"}},
				Options:  ollama.Options{TopP: ollama.Ptr(2.0)},
			}).Validate()
			Expect(err).To(MatchError(ContainSubstring("top_p")))
		})
	})

	Describe("ParseRole", func() {
		It("parses known roles case-insensitively", func() {
			role, err := ollama.ParseRole(" Assistant ")
			Expect(err).NotTo(HaveOccurred())
			Expect(role).To(Equal(ollama.RoleAssistant))
		})

		It("returns an invalid parameter error for unknown roles", func() {
			_, err := ollama.ParseRole("tool-call")
			Expect(ollama.KindOf(err)).To(Equal(ollama.KindInvalidParameter))
		})
	})

	Describe("CreateModelRequest", func() {
		It("requires a name and a modelfile source", func() {
			Expect((&ollama.CreateModelRequest{Modelfile: "FROM m"}).Validate()).To(MatchError(ContainSubstring("name is required")))
			Expect((&ollama.CreateModelRequest{Name: "x"}).Validate()).To(MatchError(ContainSubstring("modelfile or path")))
			Expect((&ollama.CreateModelRequest{Name: "x", Path: "/tmp/Modelfile"}).Validate()).To(Succeed())
		})

		It("omits unset fields", func() {
			body := marshalToMap(&ollama.CreateModelRequest{Name: "x", Modelfile: "FROM m"})
			Expect(body).To(Equal(map[string]any{"name": "x", "modelfile": "FROM m"}))
		})
	})

	Describe("Metrics", func() {
		It("derives durations and throughput", func() {
			m := ollama.Metrics{TotalDuration: 2_000_000_000, EvalCount: 50, EvalDuration: 500_000_000}
			Expect(m.Total().Seconds()).To(BeNumerically("==", 2))
			Expect(m.TokensPerSecond()).To(BeNumerically("~", 100, 0.001))
			Expect(ollama.Metrics{}.TokensPerSecond()).To(BeZero())
		})
	})
})
