package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/memvid/pkg/embeddings"
	"github.com/papercomputeco/memvid/pkg/embeddings/openai"
)

var _ = Describe("OpenAI embedder", func() {
	var (
		server *httptest.Server
		status int
		gotReq map[string]any
	)

	BeforeEach(func() {
		status = http.StatusOK
		gotReq = nil
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/v1/embeddings"))
			Expect(r.Header.Get("Authorization")).To(Equal("Bearer test-key"))
			Expect(json.NewDecoder(r.Body).Decode(&gotReq)).To(Succeed())

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			if status != http.StatusOK {
				_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`))
				return
			}
			_, _ = w.Write([]byte(`{
				"object": "list",
				"data": [{"object": "embedding", "index": 0, "embedding": [0.1, 0.2, 0.3]}],
				"model": "text-embedding-3-small",
				"usage": {"prompt_tokens": 1, "total_tokens": 1}
			}`))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newEmbedder := func(dims int) *openai.Embedder {
		e, err := openai.NewEmbedder(openai.EmbedderConfig{
			BaseURL:    server.URL + "/v1",
			APIKey:     "test-key",
			Dimensions: dims,
		})
		Expect(err).NotTo(HaveOccurred())
		return e
	}

	It("returns the embedding for the input", func() {
		e := newEmbedder(3)
		v, err := e.Embed(context.Background(), "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(Equal([]float32{0.1, 0.2, 0.3}))
		Expect(gotReq).To(HaveKeyWithValue("model", openai.DefaultEmbeddingModel))
		Expect(gotReq).To(HaveKeyWithValue("dimensions", BeNumerically("==", 3)))
	})

	It("wraps API errors", func() {
		status = http.StatusTooManyRequests
		e := newEmbedder(0)
		_, err := e.Embed(context.Background(), "hello")
		Expect(err).To(MatchError(embeddings.ErrEmbedding))
	})

	It("requires an API key for the default endpoint", func() {
		GinkgoT().Setenv(openai.APIKeyEnv, "")
		_, err := openai.NewEmbedder(openai.EmbedderConfig{})
		Expect(err).To(HaveOccurred())
	})
})
