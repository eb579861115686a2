package workspace

import "github.com/verte-zerg/tuiread/internal/model"

// mergePayload folds a patch into a payload, field by field. A nil payload
// starts from the zero value of the patch's variant.
func mergePayload(payload model.Payload, patch model.Patch) model.Payload {
	switch p := patch.(type) {
	case model.TopicPatch:
		cur, _ := payload.(model.TopicPayload)
		if p.Topic != nil {
			cur.Topic = *p.Topic
		}
		return cur
	case model.ReaderPatch:
		cur, _ := payload.(model.ReaderPayload)
		if p.Text != nil {
			cur.Text = *p.Text
		}
		if p.Words != nil {
			cur.Words = p.Words
		}
		if p.WordIndex != nil {
			cur.WordIndex = *p.WordIndex
		}
		if p.Playing != nil {
			cur.Playing = *p.Playing
		}
		if p.WPM != nil {
			cur.WPM = *p.WPM
		}
		return cur
	case model.QuizPatch:
		cur, _ := payload.(model.QuizPayload)
		if p.Text != nil {
			cur.Text = *p.Text
		}
		if p.Questions != nil {
			cur.Questions = p.Questions
		}
		if p.Answers != nil {
			cur.Answers = p.Answers
		}
		if p.Submitted != nil {
			cur.Submitted = *p.Submitted
		}
		if p.Score != nil {
			cur.Score = *p.Score
		}
		return cur
	case model.StatsPatch:
		cur, _ := payload.(model.StatsPayload)
		if p.Text != nil {
			cur.Text = *p.Text
		}
		if p.Score != nil {
			cur.Score = *p.Score
		}
		if p.Stats != nil {
			cur.Stats = p.Stats
		}
		return cur
	case model.AssistantPatch:
		cur, _ := payload.(model.AssistantPayload)
		if p.Messages != nil {
			cur.Messages = p.Messages
		}
		return cur
	case model.ParagraphPatch:
		cur, _ := payload.(model.ParagraphPayload)
		if p.Text != nil {
			cur.Text = *p.Text
		}
		if p.Words != nil {
			cur.Words = p.Words
		}
		if p.WordIndex != nil {
			cur.WordIndex = *p.WordIndex
		}
		if p.Playing != nil {
			cur.Playing = *p.Playing
		}
		return cur
	default:
		return payload
	}
}
