package pipeline

import "context"

// scoreSentiment classifies each retrieved headline. Glossary documents
// never reach this stage since only SourceDocs carry headlines. A single
// document's classification failure skips that document rather than
// aborting the batch.
func (p *Pipeline) scoreSentiment(ctx context.Context, state *State) error {
	results := make([]Sentiment, 0, len(state.SourceDocs))
	for _, doc := range state.SourceDocs {
		if doc.Title == "" {
			continue
		}
		label, confidence, err := p.classifier.Classify(ctx, doc.Title)
		if err != nil {
			p.logger.Warn("sentiment classification failed, skipping",
				"title", doc.Title, "error", err)
			continue
		}
		results = append(results, Sentiment{
			Title:        doc.Title,
			Label:        label,
			Confidence:   confidence,
			MarketImpact: marketImpact(label),
		})
	}
	state.Sentiments = results
	return nil
}

func marketImpact(label string) string {
	switch label {
	case LabelPositive:
		return ImpactPositive
	case LabelNegative:
		return ImpactNegative
	default:
		return ImpactNeutral
	}
}
