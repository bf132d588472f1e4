package tools

import (
	"context"
	"fmt"

	"github.com/cogniwarden/memory/internal/bank"
)

func registerBranchTools(r *Registry) {
	r.Register(&Tool{Name: "DoltAdd", Description: "Stage tables for the next commit.", MemoryLinked: true,
		NewArgs: func() Args { return &DoltAddArgs{} }, Func: doltAdd})
	r.Register(&Tool{Name: "DoltCommit", Description: "Commit staged changes.", MemoryLinked: true,
		NewArgs: func() Args { return &DoltCommitArgs{} }, Func: doltCommit})
	r.Register(&Tool{Name: "DoltReset", Description: "Reset tables to the last commit.", MemoryLinked: true,
		NewArgs: func() Args { return &DoltResetArgs{} }, Func: doltReset})
	r.Register(&Tool{Name: "DoltStatus", Description: "Show working-set status.", MemoryLinked: true,
		NewArgs: func() Args { return &DoltStatusArgs{} }, Func: doltStatus})
	r.Register(&Tool{Name: "DoltCheckout", Description: "Switch to an existing branch.", MemoryLinked: true,
		NewArgs: func() Args { return &DoltCheckoutArgs{} }, Func: doltCheckout})
	r.Register(&Tool{Name: "DoltBranch", Description: "Create a new branch.", MemoryLinked: true,
		NewArgs: func() Args { return &DoltBranchArgs{} }, Func: doltBranch})
	r.Register(&Tool{Name: "DoltListBranches", Description: "List all branches.", MemoryLinked: true,
		NewArgs: func() Args { return &DoltListBranchesArgs{} }, Func: doltListBranches})
	r.Register(&Tool{Name: "DoltPush", Description: "Push commits to the remote.", MemoryLinked: true,
		NewArgs: func() Args { return &DoltPushArgs{} }, Func: doltPush})
	r.Register(&Tool{Name: "DoltPull", Description: "Pull commits from the remote.", MemoryLinked: true,
		NewArgs: func() Args { return &DoltPullArgs{} }, Func: doltPull})
	r.Register(&Tool{Name: "DoltMerge", Description: "Merge a branch into the current one.", MemoryLinked: true,
		NewArgs: func() Args { return &DoltMergeArgs{} }, Func: doltMerge})
	r.Register(&Tool{Name: "DoltDiff", Description: "Diff two revisions.", MemoryLinked: true,
		NewArgs: func() Args { return &DoltDiffArgs{} }, Func: doltDiff})
	r.Register(&Tool{Name: "DoltAutoCommitAndPush", Description: "Commit and, if a remote is configured, push.", MemoryLinked: true,
		NewArgs: func() Args { return &DoltAutoCommitAndPushArgs{} }, Func: doltAutoCommitAndPush})
}

type DoltAddArgs struct {
	Tables []string `json:"tables,omitempty"`
}

func (a *DoltAddArgs) Validate() error { return nil }

func doltAdd(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*DoltAddArgs)
	if err := b.Add(ctx, a.Tables...); err != nil {
		return nil, err
	}
	return map[string]bool{"added": true}, nil
}

type DoltCommitArgs struct {
	Message string `json:"message"`
}

func (a *DoltCommitArgs) Validate() error {
	if a.Message == "" {
		return fmt.Errorf("message is required")
	}
	return nil
}

func doltCommit(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*DoltCommitArgs)
	if err := b.Commit(ctx, a.Message); err != nil {
		return nil, err
	}
	return map[string]bool{"committed": true}, nil
}

type DoltResetArgs struct {
	Tables []string `json:"tables,omitempty"`
	Hard   bool     `json:"hard,omitempty"`
}

func (a *DoltResetArgs) Validate() error { return nil }

func doltReset(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*DoltResetArgs)
	if err := b.Reset(ctx, a.Tables, a.Hard); err != nil {
		return nil, err
	}
	return map[string]bool{"reset": true}, nil
}

type DoltStatusArgs struct{}

func (a *DoltStatusArgs) Validate() error { return nil }

func doltStatus(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	return b.Status(ctx)
}

type DoltCheckoutArgs struct {
	Branch string `json:"branch"`
}

func (a *DoltCheckoutArgs) Validate() error {
	if a.Branch == "" {
		return fmt.Errorf("branch is required")
	}
	return nil
}

func doltCheckout(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*DoltCheckoutArgs)
	if err := b.Checkout(ctx, a.Branch); err != nil {
		return nil, err
	}
	return map[string]string{"branch": a.Branch}, nil
}

type DoltBranchArgs struct {
	Name string `json:"name"`
}

func (a *DoltBranchArgs) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

func doltBranch(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*DoltBranchArgs)
	if err := b.Branch(ctx, a.Name); err != nil {
		return nil, err
	}
	return map[string]string{"branch": a.Name}, nil
}

type DoltListBranchesArgs struct{}

func (a *DoltListBranchesArgs) Validate() error { return nil }

func doltListBranches(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	return b.ListBranches(ctx)
}

type DoltPushArgs struct{}

func (a *DoltPushArgs) Validate() error { return nil }

func doltPush(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	if err := b.Push(ctx); err != nil {
		return nil, err
	}
	return map[string]bool{"pushed": true}, nil
}

type DoltPullArgs struct{}

func (a *DoltPullArgs) Validate() error { return nil }

func doltPull(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	if err := b.Pull(ctx); err != nil {
		return nil, err
	}
	return map[string]bool{"pulled": true}, nil
}

type DoltMergeArgs struct {
	Branch string `json:"branch"`
}

func (a *DoltMergeArgs) Validate() error {
	if a.Branch == "" {
		return fmt.Errorf("branch is required")
	}
	return nil
}

func doltMerge(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*DoltMergeArgs)
	conflicts, err := b.Merge(ctx, a.Branch)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"conflicts": conflicts, "clean": len(conflicts) == 0}, nil
}

type DoltDiffArgs struct {
	FromRev string `json:"from_rev"`
	ToRev   string `json:"to_rev"`
}

func (a *DoltDiffArgs) Validate() error {
	if a.FromRev == "" || a.ToRev == "" {
		return fmt.Errorf("from_rev and to_rev are required")
	}
	return nil
}

func doltDiff(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*DoltDiffArgs)
	return b.Diff(ctx, a.FromRev, a.ToRev)
}

type DoltAutoCommitAndPushArgs struct {
	Message string `json:"message"`
}

func (a *DoltAutoCommitAndPushArgs) Validate() error {
	if a.Message == "" {
		return fmt.Errorf("message is required")
	}
	return nil
}

func doltAutoCommitAndPush(ctx context.Context, b *bank.Bank, rawArgs Args) (interface{}, error) {
	a := rawArgs.(*DoltAutoCommitAndPushArgs)
	pushed, err := b.AutoCommitAndPush(ctx, a.Message)
	if err != nil {
		return nil, err
	}
	return map[string]bool{"pushed": pushed}, nil
}
