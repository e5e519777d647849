// Package memory provides the per-user long-term memory layer that
// conditions generation: free-text memories are embedded, indexed, and
// retrieved by vector similarity.
//
// Architecture:
//   - Store: per-owner memory store (flat L2 vector index + parallel text log)
//   - Embedder: text-to-vector conversion (mock for tests, OpenAI API,
//     local ONNX model behind a build tag)
//   - Recorder: durable persistence of memory records (SQLite in this repo)
//
// A Store is scoped to exactly one owner and is rebuilt per request from
// that owner's persisted records, re-embedding each one. Retrieval over the
// latest committed state costs a re-embed on every construction, which is
// acceptable because embedding is cheap relative to generation. The scoping
// also makes cross-user leakage structurally impossible: a store never
// holds, and can never be queried with, another owner's records.
package memory
