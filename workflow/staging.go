package workflow

import (
	"os"
	"path/filepath"

	"github.com/mmdatafocus/stock_backend/config"
	"github.com/sirupsen/logrus"
)

const stagingPrefix = ".staging-"

type stagedOutput struct {
	staged string
	final  string
	// report marks files listed in the run summary and uploaded.
	report bool
}

// outputBatch collects the files of one run next to their final paths. They
// replace the last published outputs only on commit.
type outputBatch struct {
	runId string
	files []stagedOutput
}

func newOutputBatch(runId string) *outputBatch {
	return &outputBatch{runId: runId}
}

// path returns the staging file for final. It keeps the extension, which the
// workbook writer checks.
func (b *outputBatch) path(final string) string {
	return filepath.Join(filepath.Dir(final), stagingPrefix+b.runId+"-"+filepath.Base(final))
}

func (b *outputBatch) add(final string, report bool) {
	b.files = append(b.files, stagedOutput{staged: b.path(final), final: final, report: report})
}

// commit renames every staged file into place and returns the report paths
// in staging order.
func (b *outputBatch) commit() ([]string, error) {
	var reports []string
	for len(b.files) > 0 {
		f := b.files[0]
		if err := os.Rename(f.staged, f.final); err != nil {
			return reports, err
		}
		b.files = b.files[1:]
		if f.report {
			reports = append(reports, f.final)
		}
	}
	return reports, nil
}

// discard removes whatever was staged and not committed.
func (b *outputBatch) discard() {
	if b == nil {
		return
	}
	for _, f := range b.files {
		if err := os.Remove(f.staged); err != nil && !os.IsNotExist(err) {
			config.GetLogger().WithFields(logrus.Fields{"file": f.staged, "error": err.Error()}).Warn("could not remove staged output")
		}
	}
	b.files = nil
}
