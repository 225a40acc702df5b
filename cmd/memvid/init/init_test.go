package initcmder_test

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/memvid/cmd/memvid/init"
	"github.com/papercomputeco/memvid/pkg/config"
)

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Args(cmd, []string{})).To(Succeed())
		Expect(cmd.Args(cmd, []string{"extra"})).NotTo(Succeed())
	})

	It("has a --preset flag defaulting to hash", func() {
		cmd := initcmder.NewInitCmd()
		f := cmd.Flags().Lookup("preset")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal("hash"))
	})
})

var _ = Describe("Init command execution", func() {
	var (
		tmpDir  string
		origDir string
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "memvid-init-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	readConfig := func() *config.Config {
		data, err := os.ReadFile(filepath.Join(tmpDir, ".memvid", "config.toml"))
		Expect(err).NotTo(HaveOccurred())

		cfg := &config.Config{}
		Expect(toml.Unmarshal(data, cfg)).To(Succeed())
		return cfg
	}

	It("creates .memvid/ with a default config", func() {
		cmd := initcmder.NewInitCmd()
		cmd.SetArgs([]string{})
		Expect(cmd.Execute()).To(Succeed())

		info, err := os.Stat(filepath.Join(tmpDir, ".memvid"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())

		cfg := readConfig()
		Expect(cfg.Embedding.Provider).To(Equal("hash"))
		Expect(cfg.Version).To(Equal(config.CurrentV))
	})

	It("writes the requested preset", func() {
		cmd := initcmder.NewInitCmd()
		cmd.SetArgs([]string{"--preset", "ollama"})
		Expect(cmd.Execute()).To(Succeed())

		cfg := readConfig()
		Expect(cfg.Embedding.Provider).To(Equal("ollama"))
		Expect(cfg.Embedding.Model).To(Equal("all-minilm"))
		Expect(cfg.Embedding.Dimensions).To(Equal(384))
	})

	It("rejects an unknown preset without creating anything", func() {
		cmd := initcmder.NewInitCmd()
		cmd.SetArgs([]string{"--preset", "nope"})
		Expect(cmd.Execute()).NotTo(Succeed())

		_, err := os.Stat(filepath.Join(tmpDir, ".memvid"))
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	It("keeps an existing config unless forced", func() {
		first := initcmder.NewInitCmd()
		first.SetArgs([]string{"--preset", "ollama"})
		Expect(first.Execute()).To(Succeed())

		second := initcmder.NewInitCmd()
		second.SetArgs([]string{})
		Expect(second.Execute()).To(Succeed())
		Expect(readConfig().Embedding.Provider).To(Equal("ollama"))

		forced := initcmder.NewInitCmd()
		forced.SetArgs([]string{"--force"})
		Expect(forced.Execute()).To(Succeed())
		Expect(readConfig().Embedding.Provider).To(Equal("hash"))
	})
})
