// Package store archives trial results in LevelDB so anomalies can be inspected and replayed later.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Manu343726/rspdiff/pkg/harness"
	"github.com/syndtr/goleveldb/leveldb"
	leveldbstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var ErrNotFound = errors.New("trial not found")

// Archive keeps one record per trial, keyed by case and trial index, plus one record per case
type Archive struct {
	db *leveldb.DB
}

// Record is an archived trial together with the case it belongs to
type Record struct {
	Case  harness.TestCase    `json:"case"`
	Trial harness.TrialResult `json:"trial"`
}

// Open opens or creates an archive at path. An empty path opens an in-memory archive
func Open(path string) (*Archive, error) {
	var db *leveldb.DB
	var err error

	if path == "" {
		db, err = leveldb.Open(leveldbstorage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open archive at %s: %w", path, err)
	}

	return &Archive{db: db}, nil
}

func trialKey(caseIndex, trialIndex int) []byte {
	return []byte(fmt.Sprintf("trial/%04d/%06d", caseIndex, trialIndex))
}

func casePrefix(caseIndex int) []byte {
	return []byte(fmt.Sprintf("trial/%04d/", caseIndex))
}

func summaryKey(caseIndex int) []byte {
	return []byte(fmt.Sprintf("case/%04d", caseIndex))
}

// PutTrial archives one trial of a case
func (a *Archive) PutTrial(caseIndex int, tc harness.TestCase, trial *harness.TrialResult) error {
	data, err := json.Marshal(Record{Case: tc, Trial: *trial})
	if err != nil {
		return err
	}

	return a.db.Put(trialKey(caseIndex, trial.Index), data, nil)
}

// GetTrial returns an archived trial
func (a *Archive) GetTrial(caseIndex, trialIndex int) (*Record, error) {
	data, err := a.db.Get(trialKey(caseIndex, trialIndex), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("%w: case %d trial %d", ErrNotFound, caseIndex, trialIndex)
	}
	if err != nil {
		return nil, err
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}

	return &record, nil
}

// Trials returns every archived trial of a case, in trial order
func (a *Archive) Trials(caseIndex int) ([]Record, error) {
	iter := a.db.NewIterator(util.BytesPrefix(casePrefix(caseIndex)), nil)
	defer iter.Release()

	var records []Record

	for iter.Next() {
		var record Record
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", string(iter.Key()), err)
		}

		records = append(records, record)
	}

	if err := iter.Error(); err != nil {
		return nil, err
	}

	return records, nil
}

// PutCase archives a case summary
func (a *Archive) PutCase(result *harness.CaseResult) error {
	summary := *result
	summary.Trials = nil

	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	return a.db.Put(summaryKey(result.Index), data, nil)
}

// Cases returns every archived case summary, in case order
func (a *Archive) Cases() ([]harness.CaseResult, error) {
	iter := a.db.NewIterator(util.BytesPrefix([]byte("case/")), nil)
	defer iter.Release()

	var results []harness.CaseResult

	for iter.Next() {
		var result harness.CaseResult
		if err := json.Unmarshal(iter.Value(), &result); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", string(iter.Key()), err)
		}

		results = append(results, result)
	}

	if err := iter.Error(); err != nil {
		return nil, err
	}

	return results, nil
}

// Observer returns a driver event callback archiving every trial and case summary.
// Archive errors are reported through onError and do not stop the run.
func (a *Archive) Observer(onError func(error)) harness.EventCallback {
	return func(event harness.Event, progress *harness.Progress) bool {
		var err error

		switch event {
		case harness.EventTrialFinished:
			err = a.PutTrial(progress.Case.Index, progress.Case.Case, progress.Trial)
		case harness.EventCaseFinished:
			err = a.PutCase(progress.Case)
		}

		if err != nil && onError != nil {
			onError(err)
		}

		return true
	}
}

func (a *Archive) Close() error {
	return a.db.Close()
}
