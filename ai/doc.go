// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ai provides the embedding provider abstraction used by moodshelf.
//
// The index builder and the query engine depend on the Embedder and
// AIProvider interfaces defined here rather than on a concrete model client.
// This keeps both the offline build and the online query path testable
// without a running model server.
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Deterministic test doubles
//
// # Constructor Return Type Pattern
//
// Public constructors in ai/openai return INTERFACE types so callers cannot
// couple to a particular client:
//
//	provider, err := openai.NewProvider(config)  // returns ai.AIProvider
//
// Test constructors in ai/mock return CONCRETE types so tests can inject
// behavior and assert on call counts:
//
//	embedder := mock.NewMockEmbedder()  // returns *mock.MockEmbedder
//	embedder.EmbedTextFunc = ...
//	count := embedder.CallCount()
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithEmbeddingModel("all-minilm"))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "a cozy mystery in a seaside town")
package ai
