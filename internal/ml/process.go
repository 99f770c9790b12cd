package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"race-predictor/internal/common"
	"race-predictor/internal/features"

	"github.com/rs/zerolog/log"
)

const (
	inferenceScript         = "race_inference.py"
	embeddedInferenceScript = "race_inference_embedded.py"
	defaultProcessTimeout   = 10 * time.Second
)

// ProcessConfig describes a pickled model hosted by a python interpreter.
type ProcessConfig struct {
	Name       string
	Kind       Kind
	ModelPath  string
	PythonPath string // empty means search for one
	Timeout    time.Duration
	Features   int // expected vector width, 0 to skip the check
}

// ProcessModel runs a pickled scikit-learn model in a python subprocess,
// one process per prediction.
type ProcessModel struct {
	cfg        ProcessConfig
	pythonPath string
	scriptPath string
	modifiedAt time.Time
	loadedAt   time.Time
	metrics    MetricsInterface
}

// NewProcessModel locates python, prepares the inference script and loads the
// model once to prove it works. Any failure here is fatal for the caller.
func NewProcessModel(cfg ProcessConfig, metrics MetricsInterface) (*ProcessModel, error) {
	if _, ok := ParseKind(string(cfg.Kind)); !ok {
		return nil, fmt.Errorf("model %s: unknown kind %q", cfg.Name, cfg.Kind)
	}
	info, err := os.Stat(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", cfg.Name, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultProcessTimeout
	}

	pythonPath := cfg.PythonPath
	if pythonPath == "" {
		if pythonPath, err = findPython(); err != nil {
			return nil, fmt.Errorf("model %s: %w", cfg.Name, err)
		}
	}

	scriptPath, err := resolveScript(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("model %s: inference script: %w", cfg.Name, err)
	}

	p := &ProcessModel{
		cfg:        cfg,
		pythonPath: pythonPath,
		scriptPath: scriptPath,
		modifiedAt: info.ModTime(),
		metrics:    metrics,
	}

	if err := p.healthCheck(); err != nil {
		return nil, fmt.Errorf("model %s: health check: %w", cfg.Name, err)
	}
	p.loadedAt = time.Now()

	if p.metrics != nil {
		p.metrics.ModelAgeSet(cfg.Name, time.Since(p.modifiedAt).Seconds())
	}

	log.Info().
		Str("model", cfg.Name).
		Str("kind", string(cfg.Kind)).
		Str("model_path", cfg.ModelPath).
		Str("python_path", pythonPath).
		Msg("Model loaded")

	return p, nil
}

// Predict sends one vector to the model and decodes its answer.
func (p *ProcessModel) Predict(ctx context.Context, v features.Vector) (Prediction, error) {
	if p == nil {
		return Prediction{}, fmt.Errorf("%w: model is nil", ErrModelUnavailable)
	}
	if err := checkVector(v, p.cfg.Features); err != nil {
		return Prediction{}, err
	}

	reqJSON, err := json.Marshal(newInferenceRequest(p.cfg.Name, v))
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := p.run(ctx, reqJSON)
	if err != nil {
		return Prediction{}, err
	}

	pred, err := firstPrediction(p.cfg.Kind, resp)
	if err != nil {
		log.Error().Err(err).Str("model", p.cfg.Name).Msg("Python inference returned unusable output")
		return Prediction{}, err
	}

	log.Debug().
		Str("model", p.cfg.Name).
		Float64("value", pred.Value).
		Str("label", pred.Label).
		Msg("Prediction successful")

	return pred, nil
}

// Info reports the loaded artifact.
func (p *ProcessModel) Info() ModelInfo {
	return ModelInfo{
		Name:       p.cfg.Name,
		Kind:       p.cfg.Kind,
		Backend:    common.BackendProcess,
		Source:     p.cfg.ModelPath,
		Features:   p.cfg.Features,
		ModifiedAt: p.modifiedAt,
		LoadedAt:   p.loadedAt,
	}
}

func (p *ProcessModel) run(ctx context.Context, stdin []byte, args ...string) (InferenceResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	cmdArgs := append([]string{p.scriptPath, p.cfg.ModelPath}, args...)
	cmd := exec.CommandContext(ctx, p.pythonPath, cmdArgs...)
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Error().
			Err(err).
			Str("model", p.cfg.Name).
			Str("python_path", p.pythonPath).
			Str("script_path", p.scriptPath).
			Str("stderr", stderr.String()).
			Dur("timeout", p.cfg.Timeout).
			Bool("context_cancelled", ctx.Err() != nil).
			Msg("Python inference execution failed")

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			if p.metrics != nil {
				p.metrics.TimeoutsInc(p.cfg.Name)
			}
			return InferenceResponse{}, fmt.Errorf("%w: prediction timeout after %v", ErrModelUnavailable, p.cfg.Timeout)
		}

		// the script reports load and predict failures as JSON before exiting
		var resp InferenceResponse
		if jsonErr := json.Unmarshal(stdout.Bytes(), &resp); jsonErr == nil && resp.Error != "" {
			return InferenceResponse{}, fmt.Errorf("%w: %s", ErrModelUnavailable, resp.Error)
		}
		return InferenceResponse{}, fmt.Errorf("%w: python inference failed: %v, stderr: %s",
			ErrModelUnavailable, err, strings.TrimSpace(stderr.String()))
	}

	var resp InferenceResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		log.Error().
			Err(err).
			Str("stdout", stdout.String()).
			Str("stderr", stderr.String()).
			Msg("Failed to parse prediction response")
		return InferenceResponse{}, fmt.Errorf("%w: failed to parse response: %v", ErrBadOutput, err)
	}
	return resp, nil
}

func (p *ProcessModel) healthCheck() error {
	resp, err := p.run(context.Background(), []byte("{}"), "--check")
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return errors.New(resp.Error)
	}
	return nil
}

// resolveScript prefers a race_inference.py shipped next to the model and
// otherwise writes the embedded one there, falling back to the temp dir when
// the artifacts directory is read-only.
func resolveScript(modelPath string) (string, error) {
	dir := filepath.Dir(modelPath)
	shipped := filepath.Join(dir, inferenceScript)
	if _, err := os.Stat(shipped); err == nil {
		return shipped, nil
	}

	embedded := filepath.Join(dir, embeddedInferenceScript)
	if err := os.WriteFile(embedded, []byte(inferenceScriptSource), 0o755); err == nil {
		return embedded, nil
	}

	embedded = filepath.Join(os.TempDir(), embeddedInferenceScript)
	if err := os.WriteFile(embedded, []byte(inferenceScriptSource), 0o755); err != nil {
		return "", err
	}
	return embedded, nil
}

func findPython() (string, error) {
	const probe = "import sys, joblib, sklearn; print('Python', sys.version)"

	var candidates []string
	if venvPath := os.Getenv("VIRTUAL_ENV"); venvPath != "" {
		candidates = append(candidates,
			filepath.Join(venvPath, "bin", "python3"),
			filepath.Join(venvPath, "bin", "python"),
			filepath.Join(venvPath, "Scripts", "python.exe"),
		)
	}
	if execPath, err := os.Executable(); err == nil {
		execDir := filepath.Dir(execPath)
		for _, root := range []string{execDir, filepath.Dir(execDir)} {
			candidates = append(candidates,
				filepath.Join(root, "venv", "bin", "python3"),
				filepath.Join(root, ".venv", "bin", "python3"),
			)
		}
	}
	for _, name := range []string{"python3", "python", "python3.12", "python3.11", "python3.10"} {
		if path, err := exec.LookPath(name); err == nil {
			candidates = append(candidates, path)
		}
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		out, err := exec.Command(candidate, "-c", probe).Output()
		if err == nil && strings.Contains(string(out), "Python 3") {
			log.Info().Str("python_path", candidate).Msg("Using Python")
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no Python 3 with joblib and scikit-learn found; set PYTHON_PATH")
}

const inferenceScriptSource = `#!/usr/bin/env python3
"""Race model inference (embedded version).

usage: race_inference.py <model_path> [--check]
stdin:  {"columns": [...], "rows": [[...]]}
stdout: {"predictions": [...]} or {"error": "..."}
"""
import json
import pickle
import sys


def load(path):
    try:
        import joblib
        return joblib.load(path)
    except ImportError:
        with open(path, "rb") as f:
            return pickle.load(f)


def frame(request):
    try:
        import pandas as pd
        return pd.DataFrame(request["rows"], columns=request["columns"])
    except ImportError:
        return request["rows"]


def plain(value):
    if hasattr(value, "item"):
        value = value.item()
    if isinstance(value, bool):
        return str(value)
    if isinstance(value, (int, float)):
        return float(value)
    return str(value)


def main():
    if len(sys.argv) < 2:
        print(json.dumps({"error": "usage: race_inference.py <model_path> [--check]"}))
        sys.exit(1)
    try:
        model = load(sys.argv[1])
        if len(sys.argv) > 2 and sys.argv[2] == "--check":
            print(json.dumps({"predictions": []}))
            return
        request = json.load(sys.stdin)
        output = model.predict(frame(request))
        print(json.dumps({"predictions": [plain(v) for v in list(output)]}))
    except Exception as e:
        print(json.dumps({"error": str(e)}))
        sys.exit(1)


if __name__ == "__main__":
    main()
`
