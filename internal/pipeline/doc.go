// Package pipeline implements the retrieval-augmented question-answering
// pipeline: a fixed linear sequence of stages that turns a natural-language
// financial question into a grounded, citation-annotated answer.
//
// # Stages
//
//	question
//	   |
//	   v
//	Decompose   break the question into analytical sub-tasks (advisory text)
//	   |
//	   v
//	Retrieve    embed the question, similarity-search the general group
//	            (news + aggregator articles) and the definitional group
//	            (glossary terms), hydrate hits, keyword-filter
//	   |
//	   v
//	Sentiment   classify each retrieved headline (negative/neutral/positive)
//	   |
//	   v
//	Compose     format numbered context blocks, generate the answer, keep
//	            only the sources the model actually cited
//
// Stages run strictly sequentially; each stage consumes only fields earlier
// stages populated on the per-invocation State. Concurrent ProcessQuestion
// calls are independent.
//
// # Failure model
//
// External-capability failures (embedder, generator, classifier, store)
// propagate untouched to the top-level boundary, where ProcessQuestion
// converts them into a fixed apology string with a truncated error snippet.
// Partial-data failures are recovered locally: a hit whose backing record
// vanished is dropped during hydration, and a single headline's failed
// sentiment classification skips that headline. Retrieval coming back empty
// is not an error; it routes composition onto the zero-context path.
package pipeline
