package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"matricare/pkg/domain"
)

const maternalAssistantPrompt = "You are a supportive maternal health assistant. " +
	"Answer questions about pregnancy, prenatal care, and newborn care in clear, reassuring language. " +
	"Always advise consulting a medical professional for urgent or serious symptoms. " +
	"Never provide a diagnosis."

const chatFallbackReply = "I'm having trouble reaching the assistant right now. " +
	"Please try again in a moment, and contact your care provider directly if your question is urgent."

// Chat answers a free-form question. When a caller is known, the prompt is
// personalized with her name and, for mothers, the current pregnancy week
// and latest risk assessment when those are on record.
func (a *App) Chat(ctx context.Context, caller *domain.User, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ValidationError("query is required")
	}
	if a.generator == nil {
		return chatFallbackReply, nil
	}

	systemPrompt := maternalAssistantPrompt
	if caller != nil {
		var b strings.Builder
		b.WriteString(systemPrompt)
		fmt.Fprintf(&b, " The user's name is %s.", caller.FullName)
		if caller.Role == domain.RoleMother {
			if caller.DueDate != nil {
				if tl, err := a.GetTimeline(*caller); err == nil {
					fmt.Fprintf(&b, " She is in week %d of her pregnancy.", tl.CurrentWeek)
				}
			}
			if res, ok, err := a.store.LatestTestResult(caller.ID); err == nil && ok {
				fmt.Fprintf(&b, " Her most recent risk assessment was %q.", res.RiskLevel)
			}
		}
		systemPrompt = b.String()
	}

	genCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	text, err := a.generator.GenerateText(genCtx, systemPrompt, query)
	if err != nil {
		// Generation outages degrade to a canned reply instead of failing.
		return chatFallbackReply, nil
	}
	return text, nil
}
