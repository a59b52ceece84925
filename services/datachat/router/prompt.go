// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package router

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/datachat/services/datachat/datatypes"
)

// systemPrompt frames every model call. Kept short: the model only ever
// classifies intent, writes small SQL, or summarizes retrieved chunks.
const systemPrompt = "You are a data assistant. If the question requires math/aggregation " +
	"(sum, avg, count, top), write a small SQL for the selected source's warehouse tables. " +
	"If it's a descriptive question, summarize from retrieved chunks. Keep answers concise."

// intentPrompt asks the model to classify the question as SQL or RAG,
// grounded on schema context and recent conversation.
func intentPrompt(message, schemaContext, conversationContext string) []datatypes.Message {
	system := "You are a data analytics assistant. Classify user queries as SQL " +
		"(for aggregations, counts, analytics) or RAG (for descriptive questions). " +
		"Use provided schema context and conversation history to inform your decision.\n" +
		"Available Schema Context:\n" + schemaContext + "\n" +
		"Recent Conversation:\n" + conversationContext + "\n" +
		"Reply with 'SQL' for quantitative queries or 'RAG' for descriptive queries."

	return []datatypes.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: message},
	}
}

// sqlPrompt asks the model to generate SQL for an aggregation question the
// rule compiler did not recognize.
func sqlPrompt(message, table, schemaContext string) []datatypes.Message {
	system := systemPrompt + "\n\n" +
		"Schema context:\n" + schemaContext + "\n\n" +
		"Generate clean SQL for the user's question. Rules:\n" +
		"- Use proper table and column names from schema\n" +
		"- Include appropriate WHERE, GROUP BY, ORDER BY clauses\n" +
		"- Use COALESCE for NULL safety in aggregations\n" +
		"- Group by relevant dimensions when asked for breakdowns\n" +
		"- Consider conversation context for follow-up questions\n"

	return []datatypes.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: fmt.Sprintf("Query: %s\nTable: %s\nGenerate SQL:", message, table)},
	}
}

// ragPrompt builds the retrieval-grounded answer prompt from the searched
// chunks, schema context, and (optionally) recent conversation.
func ragPrompt(message, schemaContext, conversationContext string, chunks []string) []datatypes.Message {
	numbered := make([]string, 0, len(chunks))
	for i, c := range chunks {
		numbered = append(numbered, fmt.Sprintf("Doc %d: %s", i+1, c))
	}

	parts := []string{
		"You are a helpful data assistant. Answer based on the provided context.",
		"Schema Context:\n" + schemaContext,
	}
	if conversationContext != "" {
		parts = append(parts, "Recent Conversation:\n"+conversationContext)
	}
	parts = append(parts,
		"Documentation Context:\n"+strings.Join(numbered, "\n"),
		"User Question: "+message,
		"Provide a helpful, accurate answer based on the context.",
	)

	return []datatypes.Message{
		{Role: "system", Content: strings.Join(parts, "\n\n")},
		{Role: "user", Content: message},
	}
}

// ragFallbackPrompt is the schema-free variant used when retrieval returned
// nothing or the schema-aware call failed.
func ragFallbackPrompt(message string, chunks []string) []datatypes.Message {
	var prompt string
	if len(chunks) > 0 {
		numbered := make([]string, 0, len(chunks))
		for i, c := range chunks {
			numbered = append(numbered, fmt.Sprintf("Context %d: %s", i+1, c))
		}
		prompt = "Based on the following context, answer the user's question:\n\n" +
			strings.Join(numbered, "\n") + "\n\nQuestion: " + message + "\n\nAnswer:"
	} else {
		prompt = "Answer this question about data analytics: " + message
	}

	return []datatypes.Message{
		{Role: "system", Content: "You are a helpful data assistant."},
		{Role: "user", Content: prompt},
	}
}
