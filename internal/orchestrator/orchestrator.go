// Package orchestrator drives one run: scan the folder tree, ask the operator
// which types to fetch, download them, and offer a single retry pass over the
// failures.
//
// The control flow is the pure transition function Next; Run only performs
// the I/O each state calls for and feeds the result back in as an Event.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/ethangolledge/doc-query/internal/catalog"
	"github.com/ethangolledge/doc-query/internal/downloader"
	"github.com/ethangolledge/doc-query/internal/inventory"
)

// DefaultSeed is the sampling seed used when none is configured.
const DefaultSeed = 42

// Scanner builds the inventory of a folder tree.
type Scanner interface {
	Scan(ctx context.Context, rootID string) (*inventory.Inventory, error)
}

// Downloader runs one download pass.
type Downloader interface {
	DownloadMany(ctx context.Context, recs []*inventory.FileRecord) []downloader.Outcome
}

// Prompter is the operator side of a run.
type Prompter interface {
	// SelectTypes asks which of types to download.
	SelectTypes(ctx context.Context, types []string) (Selection, error)

	// ConfirmUnsupported asks whether to continue with the supported subset
	// after unsupported types were requested.
	ConfirmUnsupported(ctx context.Context, unsupported []string) (bool, error)

	// ConfirmRetry asks whether to retry the failed downloads once.
	ConfirmRetry(ctx context.Context, failed int) (bool, error)

	// Notify shows an informational message.
	Notify(msg string)
}

// ErrNoAnswer is returned by prompters that run out of answers.
var ErrNoAnswer = errors.New("orchestrator: no answer available")

// Options configures an Orchestrator.
type Options struct {
	// RootID is the folder to scan.
	RootID string

	// Policy is the allow-list applied to explicit selections.
	// Default: catalog.DefaultPolicy()
	Policy *catalog.Policy

	// Sample keeps a random N of the selected files. Zero keeps all.
	Sample int

	// Seed makes sampling reproducible.
	// Default: 42
	Seed uint64

	// Logger receives state transitions.
	// Default: no-op
	Logger *zap.Logger
}

// Counts tallies outcomes by status.
type Counts struct {
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Total is the number of outcomes counted.
func (c Counts) Total() int {
	return c.Succeeded + c.Skipped + c.Failed
}

// Report is what a run produced.
type Report struct {
	Inventory *inventory.Inventory    `json:"-"`
	Selected  []*inventory.FileRecord `json:"files"`
	Outcomes  []downloader.Outcome    `json:"outcomes"`
	FirstPass Counts                  `json:"first_pass"`
	Final     Counts                  `json:"final"`
	Retried   int                     `json:"retried"`
	Trace     []State                 `json:"trace"`
}

// Orchestrator composes a Scanner, a Downloader and a Prompter.
type Orchestrator struct {
	scanner    Scanner
	downloader Downloader
	prompter   Prompter
	opts       Options
	log        *zap.Logger
}

// New creates an Orchestrator.
func New(s Scanner, d Downloader, p Prompter, opts Options) *Orchestrator {
	if opts.Policy == nil {
		policy := catalog.DefaultPolicy()
		opts.Policy = &policy
	}
	if opts.Seed == 0 {
		opts.Seed = DefaultSeed
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{scanner: s, downloader: d, prompter: p, opts: opts, log: log}
}

// Run executes one run to completion. The error is non-nil when ctx is
// cancelled or the prompter fails; the report holds whatever was done up to
// that point.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	rep := &Report{}
	state := Scanning

	for {
		rep.Trace = append(rep.Trace, state)
		if state == Done {
			break
		}

		ev, err := o.step(ctx, state, rep)
		if err != nil {
			rep.Trace = append(rep.Trace, Done)
			rep.Final = Tally(rep.Outcomes)
			return rep, err
		}

		next := Next(state, ev)
		o.log.Debug("state transition",
			zap.Stringer("from", state),
			zap.Stringer("to", next),
			zap.Int("count", ev.Count),
		)
		state = next
	}

	rep.Final = Tally(rep.Outcomes)
	return rep, nil
}

// step performs the work of state and reports it as an Event.
func (o *Orchestrator) step(ctx context.Context, state State, rep *Report) (Event, error) {
	switch state {
	case Scanning:
		inv, err := o.scanner.Scan(ctx, o.opts.RootID)
		rep.Inventory = inv
		if err != nil {
			return Event{Kind: Aborted}, fmt.Errorf("scan: %w", err)
		}
		if inv.Len() == 0 {
			o.prompter.Notify("No files found in the folder.")
		}
		return Event{Kind: ScanFinished, Count: inv.Len()}, nil

	case AwaitingTypeSelection:
		files, declined, err := o.selectFiles(ctx, rep.Inventory)
		if err != nil {
			return Event{Kind: Aborted}, err
		}
		if declined {
			o.prompter.Notify("No downloads will occur.")
			return Event{Kind: SelectionDeclined}, nil
		}
		rep.Selected = files
		if len(files) > 0 {
			o.prompter.Notify(fmt.Sprintf("Found %d files to download.", len(files)))
		}
		return Event{Kind: SelectionMade, Count: len(files)}, nil

	case Downloading:
		rep.Outcomes = o.downloader.DownloadMany(ctx, rep.Selected)
		rep.FirstPass = Tally(rep.Outcomes)
		o.log.Info("download pass finished",
			zap.Int("succeeded", rep.FirstPass.Succeeded),
			zap.Int("skipped", rep.FirstPass.Skipped),
			zap.Int("failed", rep.FirstPass.Failed),
		)
		if err := ctx.Err(); err != nil {
			return Event{Kind: Aborted}, err
		}
		return Event{Kind: PassFinished, Count: rep.FirstPass.Failed}, nil

	case AwaitingRetryDecision:
		ok, err := o.prompter.ConfirmRetry(ctx, rep.FirstPass.Failed)
		if err != nil {
			return Event{Kind: Aborted}, err
		}
		if !ok {
			return Event{Kind: RetryDeclined}, nil
		}
		return Event{Kind: RetryAccepted}, nil

	case Retrying:
		failed := FailedRecords(rep.Selected, rep.Outcomes)
		rep.Retried = len(failed)
		retry := o.downloader.DownloadMany(ctx, failed)
		rep.Outcomes = MergeOutcomes(rep.Outcomes, retry)
		after := Tally(rep.Outcomes)
		o.log.Info("retry pass finished",
			zap.Int("retried", len(failed)),
			zap.Int("failed", after.Failed),
		)
		if err := ctx.Err(); err != nil {
			return Event{Kind: Aborted}, err
		}
		return Event{Kind: RetryFinished, Count: after.Failed}, nil
	}
	return Event{}, fmt.Errorf("orchestrator: no work for state %s", state)
}

// selectFiles asks the operator once and returns the matching files.
// An empty result with declined false means the operator should be asked
// again.
func (o *Orchestrator) selectFiles(ctx context.Context, inv *inventory.Inventory) ([]*inventory.FileRecord, bool, error) {
	types := catalog.DistinctTypes(inv)
	sel, err := o.prompter.SelectTypes(ctx, types)
	if err != nil {
		return nil, false, fmt.Errorf("select types: %w", err)
	}

	var files []*inventory.FileRecord
	switch sel.Kind {
	case SelectNone:
		return nil, true, nil

	case SelectAll:
		o.prompter.Notify("Commencing download of all file types...")
		files = inv.Files

	default:
		compatible, incompatible := o.opts.Policy.Partition(sel.Types)
		if len(incompatible) > 0 {
			o.log.Info("unsupported types requested",
				zap.Strings("unsupported", incompatible),
				zap.Strings("supported", o.opts.Policy.Types()),
			)
			ok, err := o.prompter.ConfirmUnsupported(ctx, incompatible)
			if err != nil {
				return nil, false, fmt.Errorf("confirm unsupported: %w", err)
			}
			if !ok {
				o.prompter.Notify("Please try again.")
				return nil, false, nil
			}
		}
		if len(compatible) == 0 {
			o.prompter.Notify("No supported file types were requested. Please try again.")
			return nil, false, nil
		}
		o.prompter.Notify("Proceeding with supported types: " + JoinWithAnd(compatible))
		files = catalog.Filter(inv, compatible)
	}

	if len(files) == 0 {
		o.prompter.Notify("No files found matching your criteria.")
		return nil, false, nil
	}
	return Sample(files, o.opts.Sample, o.opts.Seed), false, nil
}

// Sample returns n files chosen by a shuffle seeded with seed. The input is
// not modified. n <= 0 or n >= len(files) returns files unchanged.
func Sample(files []*inventory.FileRecord, n int, seed uint64) []*inventory.FileRecord {
	if n <= 0 || n >= len(files) {
		return files
	}
	shuffled := make([]*inventory.FileRecord, len(files))
	copy(shuffled, files)
	r := rand.New(rand.NewPCG(seed, seed))
	r.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:n]
}

// Tally counts outcomes by status.
func Tally(outcomes []downloader.Outcome) Counts {
	var c Counts
	for _, out := range outcomes {
		switch out.Status {
		case downloader.StatusSucceeded:
			c.Succeeded++
		case downloader.StatusSkipped:
			c.Skipped++
		default:
			c.Failed++
		}
	}
	return c
}

// MergeOutcomes overwrites entries of prev with entries of next that share
// an ID. Order of prev is kept; IDs only in next are appended.
func MergeOutcomes(prev, next []downloader.Outcome) []downloader.Outcome {
	merged := make([]downloader.Outcome, len(prev), len(prev)+len(next))
	copy(merged, prev)

	index := make(map[string]int, len(merged))
	for i, out := range merged {
		index[out.ID] = i
	}
	for _, out := range next {
		if i, ok := index[out.ID]; ok {
			merged[i] = out
			continue
		}
		index[out.ID] = len(merged)
		merged = append(merged, out)
	}
	return merged
}

// FailedRecords returns the records whose outcome failed. Skips are not
// failures.
func FailedRecords(recs []*inventory.FileRecord, outcomes []downloader.Outcome) []*inventory.FileRecord {
	failed := make(map[string]bool)
	for _, out := range outcomes {
		if out.Status == downloader.StatusFailed {
			failed[out.ID] = true
		}
	}
	var out []*inventory.FileRecord
	for _, rec := range recs {
		if failed[rec.ID] {
			out = append(out, rec)
		}
	}
	return out
}
