// Copyright Elasticsearch B.V. and/or licensed to Elasticsearch B.V. under one
// or more contributor license agreements. Licensed under the Elastic License 2.0;
// you may not use this file except in compliance with the Elastic License 2.0.

package system

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/process"
)

// Digest is a summary of the local machine's hardware, operating system and resource usage.
type Digest struct {
	CollectedAt time.Time              `json:"collectedAt"`
	Host        *host.InfoStat         `json:"host,omitempty"`
	CPU         []cpu.InfoStat         `json:"cpu,omitempty"`
	Load        *load.AvgStat          `json:"load,omitempty"`
	Memory      *mem.VirtualMemoryStat `json:"memory,omitempty"`
	Swap        *mem.SwapMemoryStat    `json:"swap,omitempty"`
	Disks       []DiskUsage            `json:"disks,omitempty"`
	Interfaces  []net.InterfaceStat    `json:"interfaces,omitempty"`
	Processes   int                    `json:"processes"`
	Errors      []string               `json:"errors,omitempty"`
}

// DiskUsage combines a partition with its usage.
type DiskUsage struct {
	Partition disk.PartitionStat `json:"partition"`
	Usage     *disk.UsageStat    `json:"usage,omitempty"`
}

// CollectDigest gathers a Digest of the local machine. Parts that cannot be collected are listed in
// Errors instead of failing the whole digest.
func CollectDigest(ctx context.Context) *Digest {
	d := &Digest{CollectedAt: time.Now()}
	record := func(err error) bool {
		if err != nil {
			d.Errors = append(d.Errors, err.Error())
			return false
		}
		return true
	}

	var err error
	d.Host, err = host.InfoWithContext(ctx)
	record(err)
	d.CPU, err = cpu.InfoWithContext(ctx)
	record(err)
	d.Load, err = load.AvgWithContext(ctx)
	record(err)
	d.Memory, err = mem.VirtualMemoryWithContext(ctx)
	record(err)
	d.Swap, err = mem.SwapMemoryWithContext(ctx)
	record(err)
	d.Interfaces, err = net.InterfacesWithContext(ctx)
	record(err)

	partitions, err := disk.PartitionsWithContext(ctx, false)
	if record(err) {
		for _, p := range partitions {
			usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
			record(err)
			d.Disks = append(d.Disks, DiskUsage{Partition: p, Usage: usage})
		}
	}
	pids, err := process.PidsWithContext(ctx)
	if record(err) {
		d.Processes = len(pids)
	}
	return d
}
