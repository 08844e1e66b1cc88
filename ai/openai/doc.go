// Package openai provides AI service implementations using OpenAI-compatible APIs.
//
// The embedder and generator talk to OpenAI or any compatible server (Ollama,
// LocalAI, vLLM) through langchaingo. Hosts are normalized to end in /v1.
//
//	provider, err := openai.NewProvider(ai.NewConfig(
//	    ai.WithHost("http://localhost:11434"),
//	    ai.WithEmbeddingModel("all-minilm"),
//	))
package openai
