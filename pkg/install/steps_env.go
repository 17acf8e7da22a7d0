package install

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/maxritter/codepro/pkg/paths"
)

// localMilvusAddress is where the docker-compose Milvus listens
const localMilvusAddress = "http://localhost:19530"

// envPrompt describes one inline key prompt
type envPrompt struct {
	Key     string
	Heading string
	Lines   []string
}

var envPrompts = []envPrompt{
	{
		Key:     "MILVUS_TOKEN",
		Heading: "1. Zilliz Cloud - Free Vector DB for Semantic Search & Memory",
		Lines: []string{
			"Used for: persistent memory across sessions & semantic code search",
			"Create at: https://zilliz.com/cloud",
		},
	},
	{
		Key:     "OPENAI_API_KEY",
		Heading: "2. OpenAI API Key - For Memory LLM Calls",
		Lines: []string{
			"Used for: low-usage LLM calls in the cipher memory system",
			"Create at: https://platform.openai.com/account/api-keys",
		},
	},
	{
		Key:     "EXA_API_KEY",
		Heading: "3. Exa API Key - AI-Powered Web Search & Code Context",
		Lines: []string{
			"Used for: web search, code examples and documentation lookup",
			"Create at: https://dashboard.exa.ai/home",
		},
	},
	{
		Key:     "GEMINI_API_KEY",
		Heading: "4. Gemini API Key - Rules Supervisor Analysis",
		Lines: []string{
			"Used for: AI-powered session analysis against project rules",
			"Create at: https://aistudio.google.com/apikey",
		},
	},
}

// environmentStep provisions the managed env key file. A key already set
// in the process environment or with a non-empty value in the file is
// never prompted for again; blank answers stay blank in the file so the
// next run asks again.
type environmentStep struct{}

func (s *environmentStep) Name() string { return "environment" }

func (s *environmentStep) ShouldSkip(run *Context) bool { return false }

func (s *environmentStep) Apply(ctx context.Context, run *Context) error {
	if run.Options.SkipEnv || run.Options.NonInteractive {
		run.Console.Status("Skipping .env setup")
		return nil
	}

	run.Console.Section("Environment Setup")

	store := run.EnvStore()
	envPath := filepath.Join(run.ProjectDir, paths.EnvFile)

	for _, prompt := range envPrompts {
		if store.Exists(prompt.Key, envPath) {
			run.Console.Success(fmt.Sprintf("%s already set, skipping", prompt.Key))
			continue
		}

		run.Console.Print("")
		run.Console.Status(prompt.Heading)
		for _, line := range prompt.Lines {
			run.Console.Line(line)
		}

		value := run.Console.Input(prompt.Key, "")
		if err := store.Upsert(prompt.Key, value, envPath); err != nil {
			return err
		}

		if prompt.Key == "MILVUS_TOKEN" {
			address := run.Console.Input("MILVUS_ADDRESS (Public Endpoint)", localMilvusAddress)
			if err := store.Upsert("MILVUS_ADDRESS", address, envPath); err != nil {
				return err
			}
			username := run.Console.Input("VECTOR_STORE_USERNAME (usually db_xxxxx)", "")
			if err := store.Upsert("VECTOR_STORE_USERNAME", username, envPath); err != nil {
				return err
			}
			password := run.Console.Input("VECTOR_STORE_PASSWORD", "")
			if err := store.Upsert("VECTOR_STORE_PASSWORD", password, envPath); err != nil {
				return err
			}
		}
	}

	// The vector store URL tracks the address resolved this run, never a
	// stale one from a previous setup
	address := s.resolvedMilvusAddress(run, envPath)
	if err := store.SetOverwrite("VECTOR_STORE_URL", address, envPath); err != nil {
		return err
	}

	run.Console.Success("Environment file is up to date")
	return nil
}

// resolvedMilvusAddress prefers the configured MILVUS_ADDRESS and falls
// back to the local docker-compose deployment
func (s *environmentStep) resolvedMilvusAddress(run *Context, envPath string) string {
	if v, ok := run.Env.Lookup("MILVUS_ADDRESS"); ok && v != "" {
		return v
	}
	if v := run.EnvStore().Value("MILVUS_ADDRESS", envPath); v != "" {
		return v
	}
	return localMilvusAddress
}

func (s *environmentStep) Rollback(ctx context.Context, run *Context) error {
	// The env file may hold secrets the user just typed; never delete it
	return nil
}
