package rpcserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/btpc-network/btpc/miner"
)

type startMiningParams struct {
	Address string `json:"address"`
	Threads int    `json:"threads"`
	UseGPU  bool   `json:"use_gpu"`
}

func miningStatusViewOf(s miner.MiningStatus) MiningStatusView {
	return MiningStatusView{Running: s.Running, UseGPU: s.UseGPU, Threads: s.Threads, BlocksFound: s.BlocksFound}
}

func (s *Server) publishMiningStatus() {
	snapshot, err := s.miningStatus.Update(func(MiningStatusView) MiningStatusView {
		return miningStatusViewOf(s.miner.Status())
	})
	if err != nil {
		return
	}
	s.hub.publish(s.miningStatus.EventName(), snapshot)
}

func init() {
	registerHandler("start_mining", func(_ context.Context, s *Server, raw json.RawMessage) (any, error) {
		var p startMiningParams
		if err := unmarshalParams(raw, &p); err != nil {
			return nil, err
		}
		if p.Address == "" {
			return nil, fmt.Errorf("rpcserver: start_mining requires a payout address")
		}
		cfg := miner.Config{
			PayoutAddress: p.Address,
			Threads:       p.Threads,
			UseGPU:        p.UseGPU,
			Intensity:     s.thermal,
		}
		if p.UseGPU {
			cfg.GPUKernel = miner.SoftwareGPUKernel{}
		}
		if err := s.miner.Start(cfg, func(miner.Result) { s.publishMiningStatus() }); err != nil {
			return nil, err
		}
		s.publishMiningStatus()
		return miningStatusViewOf(s.miner.Status()), nil
	})
}

func init() {
	registerHandler("stop_mining", func(_ context.Context, s *Server, _ json.RawMessage) (any, error) {
		s.miner.Stop()
		s.publishMiningStatus()
		return miningStatusViewOf(s.miner.Status()), nil
	})
}

func init() {
	registerHandler("get_mining_status", func(_ context.Context, s *Server, _ json.RawMessage) (any, error) {
		return s.miningStatus.Get()
	})
}

func init() {
	registerHandler("get_gpu_dashboard_data", func(_ context.Context, s *Server, _ json.RawMessage) (any, error) {
		snapshot := s.thermal.Snapshot()
		s.hub.publish(eventGPUStatsUpdated, snapshot)
		return snapshot, nil
	})
}

type setTemperatureThresholdParams struct {
	Celsius float64 `json:"celsius"`
}

func init() {
	registerHandler("set_temperature_threshold", func(_ context.Context, s *Server, raw json.RawMessage) (any, error) {
		var p setTemperatureThresholdParams
		if err := unmarshalParams(raw, &p); err != nil {
			return nil, err
		}
		if err := s.thermal.SetThreshold(p.Celsius); err != nil {
			return nil, err
		}
		return s.thermal.Snapshot(), nil
	})
}
