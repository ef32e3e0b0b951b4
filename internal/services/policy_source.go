package services

import "github.com/saarzint/AI-Agents-Geoferry/internal/modules/policy"

// PolicySource yields the active conflict and stage policy. *policy.Store implements it.
type PolicySource interface {
	Current() policy.Document
}

type staticPolicy struct{ doc policy.Document }

func (s staticPolicy) Current() policy.Document { return s.doc }

// StaticPolicy pins one policy document, for tools and tests that do not hot reload.
func StaticPolicy(doc policy.Document) PolicySource { return staticPolicy{doc: doc} }
