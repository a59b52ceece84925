// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package vectorstore provides the retrieval collaborator: an embedding
// client plus a Qdrant-backed semantic search over per-source document
// collections. The gateway never writes to the index — ingestion is a
// separate pipeline outside this service.
package vectorstore

import (
	"context"

	"github.com/AleutianAI/datachat/services/datachat/datatypes"
)

// Searcher is the narrow retrieval capability the router depends on: text
// in, scored payloads out. Embedding is an implementation detail behind it.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Searcher interface {
	// Search embeds the query text and returns the topK most similar
	// chunks from the source's collection, best first.
	Search(ctx context.Context, source datatypes.Source, query string, topK int) ([]datatypes.SearchHit, error)
}

// Embedder turns text into vectors. The gateway uses it only through
// Searcher implementations.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
