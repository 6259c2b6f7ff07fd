package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"doccontrol/api/internal/email"
	"doccontrol/api/internal/lifecycle"
	"doccontrol/api/internal/rbac"
	"doccontrol/api/internal/store"
)

type ApproverInput struct {
	ApproverName    string     `json:"approver_name"`
	ApproverRole    string     `json:"approver_role"`
	ApproverProfile string     `json:"approver_profile"`
	ApproverEmail   string     `json:"approver_email"`
	Order           int        `json:"order"`
	ApprovalLevel   int        `json:"approval_level"`
	IsRequired      *bool      `json:"is_required"`
	AIRecommended   bool       `json:"ai_recommended"`
	Deadline        *time.Time `json:"deadline"`
}

type CreateChainInput struct {
	VersionID        int64           `json:"version_id"`
	ChainType        string          `json:"chain_type"`
	RequiresTraining *bool           `json:"requires_training"`
	Approvers        []ApproverInput `json:"approvers"`
}

type ActionInput struct {
	Action   string `json:"action"`
	Comments string `json:"comments"`
}

// ActionResult is the approver's recorded decision and the chain after it was
// evaluated.
type ActionResult struct {
	Chain    store.ApprovalChain `json:"chain"`
	Approver store.Approver      `json:"approver"`
	Resolved bool                `json:"resolved"`
	Version  store.Version       `json:"version"`
}

type DefaultApproverInput struct {
	ApproverName    string  `json:"approver_name"`
	ApproverRole    string  `json:"approver_role"`
	ApproverProfile string  `json:"approver_profile"`
	ApproverEmail   string  `json:"approver_email"`
	DocumentType    *string `json:"document_type"`
	IsDefault       *bool   `json:"is_default"`
	Order           int     `json:"order"`
}

func approverProfile(raw string) lifecycle.Profile {
	if strings.TrimSpace(raw) == "" {
		return lifecycle.ProfileProcessos
	}
	return rbac.Normalize(raw)
}

func approversFromInput(items []ApproverInput) ([]store.Approver, error) {
	approvers := make([]store.Approver, 0, len(items))
	for i, item := range items {
		name := strings.TrimSpace(item.ApproverName)
		if name == "" {
			return nil, validationError("approver_name is required")
		}
		required := true
		if item.IsRequired != nil {
			required = *item.IsRequired
		}
		order := item.Order
		if order <= 0 {
			order = i + 1
		}
		level := item.ApprovalLevel
		if level <= 0 {
			level = 1
		}
		approvers = append(approvers, store.Approver{
			ApproverName:    name,
			ApproverRole:    strings.TrimSpace(item.ApproverRole),
			ApproverProfile: approverProfile(item.ApproverProfile),
			ApproverEmail:   strings.TrimSpace(item.ApproverEmail),
			Order:           order,
			ApprovalLevel:   level,
			IsRequired:      required,
			AIRecommended:   item.AIRecommended,
			Deadline:        item.Deadline,
		})
	}
	return approvers, nil
}

func approversFromDefaults(defaults []store.DefaultApprover) []store.Approver {
	approvers := make([]store.Approver, 0, len(defaults))
	for i, d := range defaults {
		order := d.Order
		if order <= 0 {
			order = i + 1
		}
		approvers = append(approvers, store.Approver{
			ApproverName:    d.ApproverName,
			ApproverRole:    d.ApproverRole,
			ApproverProfile: d.ApproverProfile,
			ApproverEmail:   d.ApproverEmail,
			Order:           order,
			ApprovalLevel:   1,
			IsRequired:      true,
		})
	}
	return approvers
}

// CreateChain opens an approval chain for a version under review. Without an
// explicit approver list the defaults for the document type are used.
func (s *Service) CreateChain(ctx context.Context, input CreateChainInput) (store.ApprovalChain, error) {
	chainType := lifecycle.ChainType(strings.TrimSpace(input.ChainType))
	if chainType == "" {
		chainType = lifecycle.ChainApproval
	}
	if !chainType.Valid() {
		return store.ApprovalChain{}, validationError("chain_type must be one of A, Ra, C")
	}
	approvers, err := approversFromInput(input.Approvers)
	if err != nil {
		return store.ApprovalChain{}, err
	}
	version, doc, err := s.ownedVersion(ctx, input.VersionID)
	if err != nil {
		return store.ApprovalChain{}, err
	}
	if len(approvers) == 0 {
		defaults, err := s.store.ListDefaultApprovers(ctx, doc.DocumentType)
		if err != nil {
			return store.ApprovalChain{}, err
		}
		approvers = approversFromDefaults(defaults)
	}
	hasRequired := false
	for _, a := range approvers {
		hasRequired = hasRequired || a.IsRequired
	}
	if !hasRequired {
		return store.ApprovalChain{}, validationError("at least one required approver is needed")
	}

	var chain store.ApprovalChain
	err = s.store.WithinTx(ctx, func(repo store.Repository) error {
		locked, err := repo.LockVersion(ctx, version.ID)
		if err != nil {
			return err
		}
		if !lifecycle.ChainOpenable(locked.Status) {
			return invalidState("version is not ready for approval", map[string]any{"status": locked.Status})
		}
		active, err := repo.FindActiveChainForVersion(ctx, locked.ID)
		if err != nil {
			return err
		}
		if active != nil && active.Status == lifecycle.ChainPending {
			return invalidState("version already has a pending approval chain", map[string]any{"chain_id": active.ID})
		}
		chain, err = repo.InsertChain(ctx, store.ApprovalChain{
			VersionID:        locked.ID,
			ChainType:        chainType,
			Status:           lifecycle.ChainPending,
			RequiresTraining: input.RequiresTraining,
			Approvers:        approvers,
		})
		if err != nil {
			return err
		}
		if err := s.moveVersion(&locked, lifecycle.VersionInReview); err != nil {
			return err
		}
		version = locked
		_, err = s.saveVersionAndDocument(ctx, repo, locked)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return store.ApprovalChain{}, invalidState("version already has a pending approval chain", nil)
		}
		return store.ApprovalChain{}, err
	}

	s.log.Info("approval chain created", "code", doc.Code, "version", version.VersionNumber,
		"chain_id", chain.ID, "chain_type", chain.ChainType, "approvers", len(chain.Approvers))
	s.requestApprovals(doc, version, chain)
	return chain, nil
}

func (s *Service) requestApprovals(doc store.Document, version store.Version, chain store.ApprovalChain) {
	if s.notifier == nil {
		return
	}
	for _, a := range chain.Approvers {
		if a.ApproverEmail == "" {
			continue
		}
		deadline := ""
		if a.Deadline != nil {
			deadline = a.Deadline.Format("02/01/2006")
		}
		err := s.notifier.SendApprovalRequest(email.ApprovalRequest{
			To:            a.ApproverEmail,
			ApproverName:  a.ApproverName,
			DocumentCode:  doc.Code,
			DocumentTitle: doc.Title,
			VersionNumber: version.VersionNumber,
			ChainType:     string(chain.ChainType),
			Deadline:      deadline,
		})
		if err != nil {
			s.log.Warn("approval request not sent", "chain_id", chain.ID, "approver", a.ApproverEmail, "error", err)
		}
	}
}

// GetActiveChain returns the pending chain of a version, or its latest one.
func (s *Service) GetActiveChain(ctx context.Context, versionID int64) (store.ApprovalChain, error) {
	if _, _, err := s.ownedVersion(ctx, versionID); err != nil {
		return store.ApprovalChain{}, err
	}
	chain, err := s.store.FindActiveChainForVersion(ctx, versionID)
	if err != nil {
		return store.ApprovalChain{}, err
	}
	if chain == nil {
		return store.ApprovalChain{}, notFound("no approval chain for this version")
	}
	return *chain, nil
}

// chainOutcome resolves a chain once every required approver has acted. Any
// rejection among them rejects the chain. Optional approvers never count.
func chainOutcome(approvers []store.Approver) (lifecycle.ChainStatus, bool) {
	rejected := false
	for _, a := range approvers {
		if !a.IsRequired {
			continue
		}
		if a.Action == nil {
			return lifecycle.ChainPending, false
		}
		if *a.Action == lifecycle.ActionReject {
			rejected = true
		}
	}
	if rejected {
		return lifecycle.ChainRejected, true
	}
	return lifecycle.ChainApproved, true
}

// RecordAction stores an approver's decision. Decisions are write-once; the
// chain and its version resolve when the last required approver acts.
func (s *Service) RecordAction(ctx context.Context, chainID, approverID int64, input ActionInput) (ActionResult, error) {
	action := lifecycle.ApproverAction(strings.ToLower(strings.TrimSpace(input.Action)))
	if !action.Valid() {
		return ActionResult{}, validationError("action must be approve or reject")
	}

	var result ActionResult
	err := s.store.WithinTx(ctx, func(repo store.Repository) error {
		chain, err := repo.LockChain(ctx, chainID)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("approval chain not found")
		}
		if err != nil {
			return err
		}
		approver, err := repo.GetApprover(ctx, chainID, approverID)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("approver not found in this chain")
		}
		if err != nil {
			return err
		}
		if approver.Action != nil {
			return invalidState("approver has already acted", map[string]any{"action": *approver.Action})
		}
		if chain.Status != lifecycle.ChainPending {
			return invalidState("approval chain is already resolved", map[string]any{"status": chain.Status})
		}

		now := s.now()
		comments := strings.TrimSpace(input.Comments)
		ok, err := repo.RecordApproverAction(ctx, approverID, action, comments, now)
		if err != nil {
			return err
		}
		if !ok {
			return invalidState("approver has already acted", nil)
		}
		approver.Action = &action
		approver.Comments = comments
		approver.ActedAt = &now
		for i := range chain.Approvers {
			if chain.Approvers[i].ID == approverID {
				chain.Approvers[i] = approver
			}
		}

		status, resolved := chainOutcome(chain.Approvers)
		result = ActionResult{Approver: approver, Resolved: resolved}
		if resolved {
			chain.Status = status
			chain.CompletedAt = &now
			if err := repo.UpdateChainStatus(ctx, chainID, status, &now); err != nil {
				return err
			}
			version, err := repo.LockVersion(ctx, chain.VersionID)
			if err != nil {
				return err
			}
			next := lifecycle.VersionApproved
			if status == lifecycle.ChainRejected {
				next = lifecycle.VersionRejected
			}
			if err := s.moveVersion(&version, next); err != nil {
				return err
			}
			if _, err := s.saveVersionAndDocument(ctx, repo, version); err != nil {
				return err
			}
			result.Version = version
		} else {
			version, err := repo.GetVersion(ctx, chain.VersionID)
			if err != nil {
				return err
			}
			result.Version = version
		}
		result.Chain = chain
		return nil
	})
	if err != nil {
		return ActionResult{}, err
	}
	s.log.Info("approval recorded", "chain_id", chainID, "approver_id", approverID,
		"action", action, "chain_status", result.Chain.Status)
	if result.Resolved {
		if doc, err := s.store.GetDocument(ctx, result.Version.DocumentID); err == nil {
			s.indexDocument(ctx, doc)
		}
	}
	return result, nil
}

func (s *Service) UpdateTraining(ctx context.Context, chainID int64, requiresTraining *bool) (store.ApprovalChain, error) {
	ok, err := s.store.UpdateChainTraining(ctx, chainID, requiresTraining)
	if err != nil {
		return store.ApprovalChain{}, err
	}
	if !ok {
		return store.ApprovalChain{}, notFound("approval chain not found")
	}
	return s.store.GetChain(ctx, chainID)
}

func (s *Service) PendingApprovals(ctx context.Context) ([]store.PendingApproval, error) {
	return s.store.ListPendingApprovals(ctx)
}

func (s *Service) ListDefaultApprovers(ctx context.Context, rawType string) ([]store.DefaultApprover, error) {
	var docType lifecycle.DocumentType
	if strings.TrimSpace(rawType) != "" {
		parsed, err := parseDocumentType(rawType)
		if err != nil {
			return nil, err
		}
		docType = parsed
	}
	return s.store.ListDefaultApprovers(ctx, docType)
}

func defaultApproverFromInput(input DefaultApproverInput) (store.DefaultApprover, error) {
	name := strings.TrimSpace(input.ApproverName)
	if name == "" {
		return store.DefaultApprover{}, validationError("approver_name is required")
	}
	item := store.DefaultApprover{
		ApproverName:    name,
		ApproverRole:    strings.TrimSpace(input.ApproverRole),
		ApproverProfile: approverProfile(input.ApproverProfile),
		ApproverEmail:   strings.TrimSpace(input.ApproverEmail),
		IsDefault:       true,
		Order:           input.Order,
	}
	if input.IsDefault != nil {
		item.IsDefault = *input.IsDefault
	}
	if input.DocumentType != nil && strings.TrimSpace(*input.DocumentType) != "" {
		docType, err := parseDocumentType(*input.DocumentType)
		if err != nil {
			return store.DefaultApprover{}, err
		}
		item.DocumentType = &docType
	}
	return item, nil
}

func (s *Service) CreateDefaultApprover(ctx context.Context, input DefaultApproverInput) (store.DefaultApprover, error) {
	item, err := defaultApproverFromInput(input)
	if err != nil {
		return store.DefaultApprover{}, err
	}
	return s.store.InsertDefaultApprover(ctx, item)
}

func (s *Service) UpdateDefaultApprover(ctx context.Context, id int64, input DefaultApproverInput) (store.DefaultApprover, error) {
	item, err := defaultApproverFromInput(input)
	if err != nil {
		return store.DefaultApprover{}, err
	}
	item.ID = id
	ok, err := s.store.UpdateDefaultApprover(ctx, item)
	if err != nil {
		return store.DefaultApprover{}, err
	}
	if !ok {
		return store.DefaultApprover{}, notFound("default approver not found")
	}
	return item, nil
}

func (s *Service) DeleteDefaultApprover(ctx context.Context, id int64) error {
	ok, err := s.store.DeleteDefaultApprover(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("default approver not found")
	}
	return nil
}
