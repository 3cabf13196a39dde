// Package rpc exposes the triage engine over the internal JSON-over-TCP RPC
// layer with the same semantics as the HTTP API.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/symptom-triage/internal/triage"
	apperrors "github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/proto"
	pkgrpc "github.com/Adithya-Monish-Kumar-K/symptom-triage/pkg/rpc"
)

// Service implements TriageService.
type Service struct {
	engine *triage.Engine
}

// NewService creates a Service backed by engine.
func NewService(engine *triage.Engine) *Service {
	return &Service{engine: engine}
}

// Register adds the service's methods to s.
func (svc *Service) Register(s *pkgrpc.Server) {
	s.Register(proto.MethodPredict, svc.Predict)
	s.Register(proto.MethodSymptoms, svc.Symptoms)
	s.Register(proto.MethodDiseases, svc.Diseases)
	s.Register(proto.MethodHealth, func(context.Context, json.RawMessage) (any, error) {
		return proto.HealthCheckResponse{Status: "SERVING"}, nil
	})
}

// Predict decodes a PredictRequest and diagnoses it. Client errors are
// returned verbatim; anything else is reported as a generic failure. The
// engine has already logged the cause.
func (svc *Service) Predict(ctx context.Context, params json.RawMessage) (any, error) {
	var req proto.PredictRequest
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
		}
	}
	d, err := svc.engine.Diagnose(ctx, req.Symptoms)
	if err != nil {
		if apperrors.IsClientError(err) {
			return nil, err
		}
		return nil, apperrors.ErrInternal
	}
	return ToProto(d), nil
}

// Symptoms lists the vocabulary in layout order.
func (svc *Service) Symptoms(context.Context, json.RawMessage) (any, error) {
	return proto.ListResponse{Names: svc.engine.Vocabulary().Names()}, nil
}

// Diseases lists the taxonomy in index order.
func (svc *Service) Diseases(context.Context, json.RawMessage) (any, error) {
	return proto.ListResponse{Names: svc.engine.Taxonomy().Names()}, nil
}

// ToProto converts a Diagnosis to its wire form.
func ToProto(d *triage.Diagnosis) proto.PredictResponse {
	out := proto.PredictResponse{
		Recognized: d.Recognized,
		Unknown:    d.Unknown,
		Conditions: make([]proto.Condition, 0, len(d.Candidates)),
		Agreement:  string(d.Agreement),
		CacheHit:   d.CacheHit,
		Disclaimer: d.Disclaimer,
	}
	for _, c := range d.Candidates {
		out.Conditions = append(out.Conditions, proto.Condition{
			Name:            c.Name,
			Models:          c.Models,
			Description:     c.Description,
			Recommendations: c.Recommendations,
			Tests:           c.Tests,
			Urgency:         c.Urgency,
		})
	}
	return out
}
