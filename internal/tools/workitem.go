package tools

import (
	"context"
	"fmt"

	"github.com/cogniwarden/memory/internal/bank"
	"github.com/cogniwarden/memory/internal/toolerr"
	"github.com/cogniwarden/memory/internal/types"
)

// workItemTypes is the set of block types the work-item specialization
// accepts, matching spec.md §4.6's status/lifecycle fields.
var workItemTypes = map[types.BlockType]bool{
	types.BlockTask:    true,
	types.BlockProject: true,
	types.BlockEpic:    true,
	types.BlockBug:     true,
}

// workItemStatus is the closed set of lifecycle states a work item cycles
// through, distinct from types.BlockState (draft/published/archived), which
// tracks the block's own editorial state rather than its execution status.
const (
	statusOpen       = "open"
	statusInProgress = "in_progress"
	statusBlocked    = "blocked"
	statusDone       = "done"
	statusReleased   = "released"
)

func validWorkItemStatus(s string) bool {
	switch s {
	case statusOpen, statusInProgress, statusBlocked, statusDone, statusReleased:
		return true
	}
	return false
}

func registerWorkItemTools(r *Registry) {
	r.Register(&Tool{
		Name:           "CreateWorkItem",
		Description:    "Create a work-item memory block (task/project/epic/bug) from its typed fields.",
		MemoryLinked:   true,
		NeedsNamespace: true,
		NewArgs:        func() Args { return &CreateWorkItemArgs{} },
		Func:           createWorkItem,
	})
	r.Register(&Tool{
		Name:           "UpdateWorkItem",
		Description:    "Update a work item's typed fields.",
		MemoryLinked:   true,
		NeedsNamespace: false,
		NewArgs:        func() Args { return &UpdateWorkItemArgs{} },
		Func:           updateWorkItem,
	})
	r.Register(&Tool{
		Name:           "UpdateTaskStatus",
		Description:    "Transition a work item's status, auto-synthesizing a validation report on completion.",
		MemoryLinked:   true,
		NeedsNamespace: false,
		NewArgs:        func() Args { return &UpdateTaskStatusArgs{} },
		Func:           updateTaskStatus,
	})
	r.Register(&Tool{
		Name:           "AddValidationReport",
		Description:    "Attach a validation report to a work item's metadata.",
		MemoryLinked:   true,
		NeedsNamespace: false,
		NewArgs:        func() Args { return &AddValidationReportArgs{} },
		Func:           addValidationReport,
	})
	r.Register(&Tool{
		Name:           "GetActiveWorkItems",
		Description:    "List work items that are not done or released, optionally scoped to a namespace.",
		MemoryLinked:   true,
		NeedsNamespace: false,
		NewArgs:        func() Args { return &GetActiveWorkItemsArgs{} },
		Func:           getActiveWorkItems,
	})
}

// workItemFields are the spec.md §4.6 fields mapped into a block's metadata
// under a single "work_item" key, keeping the block's own top-level metadata
// keys free for caller-supplied values.
type workItemFields struct {
	Title              string   `json:"title"`
	Status             string   `json:"status"`
	Priority            string   `json:"priority,omitempty"`
	Owner               string   `json:"owner,omitempty"`
	AcceptanceCriteria  []string `json:"acceptance_criteria,omitempty"`
	ActionItems         []string `json:"action_items,omitempty"`
	ExpectedArtifacts   []string `json:"expected_artifacts,omitempty"`
	BlockedBy           []string `json:"blocked_by,omitempty"`
	StoryPoints         *float64 `json:"story_points,omitempty"`
	EstimateHours       *float64 `json:"estimate_hours,omitempty"`
	ExecutionPhase      string   `json:"execution_phase,omitempty"`
	ValidationReport    map[string]interface{} `json:"validation_report,omitempty"`
}

func (w workItemFields) validate() error {
	if w.Title == "" {
		return fmt.Errorf("title is required")
	}
	if w.Status != "" && !validWorkItemStatus(w.Status) {
		return fmt.Errorf("invalid status %q", w.Status)
	}
	if w.ExecutionPhase != "" && w.Status != statusInProgress {
		return fmt.Errorf("execution_phase may only be set when status is %q", statusInProgress)
	}
	return nil
}

func (w workItemFields) toMetadataValue() (types.MetadataValue, error) {
	raw := map[string]interface{}{
		"title":  w.Title,
		"status": w.Status,
	}
	if w.Priority != "" {
		raw["priority"] = w.Priority
	}
	if w.Owner != "" {
		raw["owner"] = w.Owner
	}
	if len(w.AcceptanceCriteria) > 0 {
		raw["acceptance_criteria"] = w.AcceptanceCriteria
	}
	if len(w.ActionItems) > 0 {
		raw["action_items"] = w.ActionItems
	}
	if len(w.ExpectedArtifacts) > 0 {
		raw["expected_artifacts"] = w.ExpectedArtifacts
	}
	if len(w.BlockedBy) > 0 {
		raw["blocked_by"] = w.BlockedBy
	}
	if w.StoryPoints != nil {
		raw["story_points"] = *w.StoryPoints
	}
	if w.EstimateHours != nil {
		raw["estimate_hours"] = *w.EstimateHours
	}
	if w.ExecutionPhase != "" {
		raw["execution_phase"] = w.ExecutionPhase
	}
	if w.ValidationReport != nil {
		raw["validation_report"] = w.ValidationReport
	}
	return types.FromJSON(raw)
}

func workItemFieldsFromBlock(block *types.MemoryBlock) workItemFields {
	raw, ok := block.Metadata["work_item"]
	if !ok {
		return workItemFields{}
	}
	m, ok := raw.ToJSON().(map[string]interface{})
	if !ok {
		return workItemFields{}
	}
	w := workItemFields{}
	if v, ok := m["title"].(string); ok {
		w.Title = v
	}
	if v, ok := m["status"].(string); ok {
		w.Status = v
	}
	if v, ok := m["priority"].(string); ok {
		w.Priority = v
	}
	if v, ok := m["owner"].(string); ok {
		w.Owner = v
	}
	w.AcceptanceCriteria = stringSliceFromAny(m["acceptance_criteria"])
	w.ActionItems = stringSliceFromAny(m["action_items"])
	w.ExpectedArtifacts = stringSliceFromAny(m["expected_artifacts"])
	w.BlockedBy = stringSliceFromAny(m["blocked_by"])
	for key, dst := range map[string]**float64{"story_points": &w.StoryPoints, "estimate_hours": &w.EstimateHours} {
		switch v := m[key].(type) {
		case int64:
			f := float64(v)
			*dst = &f
		case float64:
			f := v
			*dst = &f
		}
	}
	if v, ok := m["execution_phase"].(string); ok {
		w.ExecutionPhase = v
	}
	if v, ok := m["validation_report"].(map[string]interface{}); ok {
		w.ValidationReport = v
	}
	return w
}

func stringSliceFromAny(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// synthesizeValidationReport marks every declared acceptance criterion
// passed, used when a work item transitions to done/released with no
// validation report already recorded (spec.md §4.6).
func synthesizeValidationReport(criteria []string) map[string]interface{} {
	results := make([]map[string]interface{}, 0, len(criteria))
	for _, c := range criteria {
		results = append(results, map[string]interface{}{"criterion": c, "passed": true})
	}
	return map[string]interface{}{
		"auto_synthesized": true,
		"results":          results,
	}
}

// CreateWorkItemArgs is the CreateWorkItem input model.
type CreateWorkItemArgs struct {
	NamespaceID string `json:"namespace_id"`
	Type        string `json:"type"`
	Description string `json:"description"`
	workItemFields
}

func (a *CreateWorkItemArgs) Validate() error {
	if a.NamespaceID == "" {
		return fmt.Errorf("namespace_id is required")
	}
	if !workItemTypes[types.BlockType(a.Type)] {
		return fmt.Errorf("invalid work item type %q", a.Type)
	}
	if a.Status == "" {
		a.Status = statusOpen
	}
	return a.workItemFields.validate()
}

func createWorkItem(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*CreateWorkItemArgs)

	mv, err := a.workItemFields.toMetadataValue()
	if err != nil {
		return nil, toolerr.Wrap(toolerr.ValidationError, err, "invalid work item fields")
	}

	draft := &types.BlockDraft{
		NamespaceID: a.NamespaceID,
		Type:        types.BlockType(a.Type),
		Text:        a.Description,
		Metadata:    map[string]types.MetadataValue{"work_item": mv},
	}
	return b.CreateMemoryBlock(ctx, draft)
}

// UpdateWorkItemArgs is the UpdateWorkItem input model. Only non-empty/
// non-nil fields are applied; the rest are left as the current block has
// them.
type UpdateWorkItemArgs struct {
	BlockID              string   `json:"block_id"`
	PreviousBlockVersion *int     `json:"previous_block_version,omitempty"`
	Description          *string  `json:"description,omitempty"`
	workItemFields
}

func (a *UpdateWorkItemArgs) Validate() error {
	if a.BlockID == "" {
		return fmt.Errorf("block_id is required")
	}
	if a.Status != "" && !validWorkItemStatus(a.Status) {
		return fmt.Errorf("invalid status %q", a.Status)
	}
	if a.ExecutionPhase != "" && a.Status != "" && a.Status != statusInProgress {
		return fmt.Errorf("execution_phase may only be set when status is %q", statusInProgress)
	}
	return nil
}

func updateWorkItem(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*UpdateWorkItemArgs)

	current, err := b.GetMemoryBlock(ctx, a.BlockID)
	if err != nil {
		return nil, err
	}
	existing := workItemFieldsFromBlock(current)
	merged := mergeWorkItemFields(existing, a.workItemFields)
	if merged.ExecutionPhase != "" && merged.Status != statusInProgress {
		return nil, toolerr.New(toolerr.ValidationError,
			"execution_phase may only be set when status is %q", statusInProgress)
	}

	mv, err := merged.toMetadataValue()
	if err != nil {
		return nil, toolerr.Wrap(toolerr.ValidationError, err, "invalid work item fields")
	}

	patch := bank.Patch{
		PreviousBlockVersion: a.PreviousBlockVersion,
		Metadata:             map[string]types.MetadataValue{"work_item": mv},
		MergeMetadata:        true,
	}
	if a.Description != nil {
		patch.Text = a.Description
	}
	return b.UpdateMemoryBlock(ctx, a.BlockID, patch)
}

// mergeWorkItemFields overlays non-zero fields of next onto base.
func mergeWorkItemFields(base, next workItemFields) workItemFields {
	merged := base
	if next.Title != "" {
		merged.Title = next.Title
	}
	if next.Status != "" {
		merged.Status = next.Status
	}
	if next.Priority != "" {
		merged.Priority = next.Priority
	}
	if next.Owner != "" {
		merged.Owner = next.Owner
	}
	if next.AcceptanceCriteria != nil {
		merged.AcceptanceCriteria = next.AcceptanceCriteria
	}
	if next.ActionItems != nil {
		merged.ActionItems = next.ActionItems
	}
	if next.ExpectedArtifacts != nil {
		merged.ExpectedArtifacts = next.ExpectedArtifacts
	}
	if next.BlockedBy != nil {
		merged.BlockedBy = next.BlockedBy
	}
	if next.StoryPoints != nil {
		merged.StoryPoints = next.StoryPoints
	}
	if next.EstimateHours != nil {
		merged.EstimateHours = next.EstimateHours
	}
	if next.ExecutionPhase != "" {
		merged.ExecutionPhase = next.ExecutionPhase
	} else if next.Status != "" && next.Status != statusInProgress {
		merged.ExecutionPhase = ""
	}
	if next.ValidationReport != nil {
		merged.ValidationReport = next.ValidationReport
	}
	return merged
}

// UpdateTaskStatusArgs is the UpdateTaskStatus input model.
type UpdateTaskStatusArgs struct {
	BlockID              string `json:"block_id"`
	PreviousBlockVersion *int   `json:"previous_block_version,omitempty"`
	Status               string `json:"status"`
}

func (a *UpdateTaskStatusArgs) Validate() error {
	if a.BlockID == "" {
		return fmt.Errorf("block_id is required")
	}
	if !validWorkItemStatus(a.Status) {
		return fmt.Errorf("invalid status %q", a.Status)
	}
	return nil
}

func updateTaskStatus(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*UpdateTaskStatusArgs)

	current, err := b.GetMemoryBlock(ctx, a.BlockID)
	if err != nil {
		return nil, err
	}
	existing := workItemFieldsFromBlock(current)
	existing.Status = a.Status
	if a.Status != statusInProgress {
		existing.ExecutionPhase = ""
	}
	if (a.Status == statusDone || a.Status == statusReleased) && existing.ValidationReport == nil {
		existing.ValidationReport = synthesizeValidationReport(existing.AcceptanceCriteria)
	}

	mv, err := existing.toMetadataValue()
	if err != nil {
		return nil, toolerr.Wrap(toolerr.ValidationError, err, "invalid work item fields")
	}

	patch := bank.Patch{
		PreviousBlockVersion: a.PreviousBlockVersion,
		Metadata:             map[string]types.MetadataValue{"work_item": mv},
		MergeMetadata:        true,
	}
	return b.UpdateMemoryBlock(ctx, a.BlockID, patch)
}

// AddValidationReportArgs is the AddValidationReport input model.
type AddValidationReportArgs struct {
	BlockID              string                 `json:"block_id"`
	PreviousBlockVersion *int                   `json:"previous_block_version,omitempty"`
	Report               map[string]interface{} `json:"report"`
}

func (a *AddValidationReportArgs) Validate() error {
	if a.BlockID == "" {
		return fmt.Errorf("block_id is required")
	}
	if len(a.Report) == 0 {
		return fmt.Errorf("report is required")
	}
	return nil
}

func addValidationReport(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*AddValidationReportArgs)

	current, err := b.GetMemoryBlock(ctx, a.BlockID)
	if err != nil {
		return nil, err
	}
	existing := workItemFieldsFromBlock(current)
	existing.ValidationReport = a.Report

	mv, err := existing.toMetadataValue()
	if err != nil {
		return nil, toolerr.Wrap(toolerr.ValidationError, err, "invalid work item fields")
	}

	patch := bank.Patch{
		PreviousBlockVersion: a.PreviousBlockVersion,
		Metadata:             map[string]types.MetadataValue{"work_item": mv},
		MergeMetadata:        true,
	}
	return b.UpdateMemoryBlock(ctx, a.BlockID, patch)
}

// GetActiveWorkItemsArgs is the GetActiveWorkItems input model.
type GetActiveWorkItemsArgs struct {
	NamespaceID string `json:"namespace_id,omitempty"`
}

func (a *GetActiveWorkItemsArgs) Validate() error { return nil }

func getActiveWorkItems(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*GetActiveWorkItemsArgs)

	var active []*types.MemoryBlock
	for t := range workItemTypes {
		blockType := t
		blocks, err := b.GetAllMemoryBlocks(ctx, types.Filter{NamespaceID: a.NamespaceID, Type: &blockType})
		if err != nil {
			return nil, err
		}
		for _, block := range blocks {
			w := workItemFieldsFromBlock(block)
			if w.Status != statusDone && w.Status != statusReleased {
				active = append(active, block)
			}
		}
	}
	return active, nil
}
