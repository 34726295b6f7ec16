package onnx

import (
	"fmt"
	"log/slog"
	"strconv"

	onnxrt "github.com/yalue/onnxruntime_go"
)

// GPUConfig selects the CUDA execution provider.
type GPUConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	DeviceID   int    `mapstructure:"device_id" yaml:"device_id" json:"device_id"`
	MemLimitMB uint64 `mapstructure:"mem_limit_mb" yaml:"mem_limit_mb" json:"mem_limit_mb"`
	ConvSearch string `mapstructure:"conv_search" yaml:"conv_search" json:"conv_search"`
}

// DefaultGPUConfig runs on CPU.
func DefaultGPUConfig() GPUConfig {
	return GPUConfig{ConvSearch: "DEFAULT"}
}

// Validate checks the fields that matter when GPU is enabled.
func (g GPUConfig) Validate() error {
	if !g.Enabled {
		return nil
	}
	if g.DeviceID < 0 {
		return fmt.Errorf("gpu device_id must be non-negative, got %d", g.DeviceID)
	}
	switch g.ConvSearch {
	case "", "DEFAULT", "HEURISTIC", "EXHAUSTIVE":
		return nil
	default:
		return fmt.Errorf("invalid gpu conv_search %q (want DEFAULT, HEURISTIC or EXHAUSTIVE)", g.ConvSearch)
	}
}

// NewSessionOptions builds session options with the thread count and, when
// enabled, the CUDA provider. The caller destroys the result.
func NewSessionOptions(threads int, gpu GPUConfig) (*onnxrt.SessionOptions, error) {
	opts, err := onnxrt.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	if threads > 0 {
		if err := opts.SetIntraOpNumThreads(threads); err != nil {
			_ = opts.Destroy()
			return nil, fmt.Errorf("set threads: %w", err)
		}
	}
	if err := appendCUDA(opts, gpu); err != nil {
		_ = opts.Destroy()
		return nil, err
	}
	return opts, nil
}

func appendCUDA(opts *onnxrt.SessionOptions, gpu GPUConfig) error {
	if !gpu.Enabled {
		return nil
	}
	cuda, err := onnxrt.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("cuda provider options: %w", err)
	}
	defer func() {
		if err := cuda.Destroy(); err != nil {
			slog.Warn("destroy cuda provider options", "error", err)
		}
	}()

	if err := cuda.Update(cudaSettings(gpu)); err != nil {
		return fmt.Errorf("cuda provider settings: %w", err)
	}
	if err := opts.AppendExecutionProviderCUDA(cuda); err != nil {
		return fmt.Errorf("append cuda provider: %w", err)
	}
	return nil
}

func cudaSettings(gpu GPUConfig) map[string]string {
	s := map[string]string{
		"device_id":                 strconv.Itoa(gpu.DeviceID),
		"arena_extend_strategy":     "kNextPowerOfTwo",
		"do_copy_in_default_stream": "1",
	}
	if gpu.MemLimitMB > 0 {
		s["gpu_mem_limit"] = strconv.FormatUint(gpu.MemLimitMB*1024*1024, 10)
	}
	if gpu.ConvSearch != "" {
		s["cudnn_conv_algo_search"] = gpu.ConvSearch
	}
	return s
}
