package residual

import (
	"fmt"

	"LoadCast/internal/domain/errs"
	"LoadCast/pkg/artifact"
	"LoadCast/pkg/logger"
)

var forestFormat = artifact.Format{Magic: [4]byte{'L', 'C', 'R', 'F'}, Version: 1}

// Save writes the trained model to path atomically.
func (c *Corrector) Save(path string) error {
	c.mu.RLock()
	st := c.state
	c.mu.RUnlock()
	if st == nil {
		return &errs.ModelNotTrainedError{ModelID: c.modelID, Op: "save"}
	}

	n, err := forestFormat.WriteFile(path, st)
	if err != nil {
		return fmt.Errorf("save %s: %w", c.modelID, err)
	}
	c.log.Info("residual model saved",
		logger.String("model", c.modelID),
		logger.String("path", path),
		logger.Int("bytes", n),
	)
	return nil
}

// Load replaces the current model with the artifact at path. On any failure
// the corrector keeps its previous state and a ModelLoadError is returned.
func (c *Corrector) Load(path string) error {
	var st trainedState
	err := forestFormat.ReadFile(path, &st)
	if err == nil && (st.Forest == nil || len(st.Forest.Trees) == 0 ||
		len(st.Scaler.Mean) != len(st.Columns) || len(st.Scaler.Scale) != len(st.Columns)) {
		err = fmt.Errorf("%w: inconsistent model", artifact.ErrCorrupt)
	}
	if err != nil {
		c.log.Warn("residual model load failed",
			logger.String("model", c.modelID),
			logger.String("path", path),
			logger.Error(err),
		)
		return &errs.ModelLoadError{ModelID: c.modelID, Path: path, Err: err}
	}

	c.mu.Lock()
	c.state = &st
	c.mu.Unlock()
	c.log.Info("residual model loaded",
		logger.String("model", c.modelID),
		logger.String("path", path),
		logger.Int("trees", len(st.Forest.Trees)),
	)
	return nil
}
