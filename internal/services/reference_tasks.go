package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	types "github.com/saarzint/AI-Agents-Geoferry/internal/domain"
)

const visaCheckEndpoint = "/reference/visa"

// VisaCheckTask reports the visa requirements for the student's route straight from
// the reference cache. It costs no model tokens; the settlement still lands on the ledger
// so every agent run leaves a usage entry.
func VisaCheckTask(reference ReferenceService) AgentTask {
	return AgentTask{
		AgentName: types.AgentVisaRequirements,
		Endpoint:  visaCheckEndpoint,
		Work: func(ctx context.Context, profile *types.UserProfile) (AgentOutput, error) {
			out := AgentOutput{Provider: "cache"}
			citizenship := strings.TrimSpace(profile.CitizenshipCountry)
			destination := strings.TrimSpace(profile.DestinationCountry)
			lk, err := reference.GetVisa(ctx, citizenship, destination)
			if err != nil {
				return out, err
			}
			payload := map[string]any{}
			if lk.Record != nil && len(lk.Record.Payload) > 0 {
				if err := json.Unmarshal(lk.Record.Payload, &payload); err != nil {
					return out, fmt.Errorf("decode visa record: %w", err)
				}
			}
			payload["citizenship"] = citizenship
			payload["destination"] = destination
			payload["stale"] = lk.Stale
			if lk.RefreshRequested {
				payload["refresh_requested"] = true
			}
			out.Payload = payload
			return out, nil
		},
	}
}
