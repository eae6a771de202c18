package crawlers

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// MemorySample 一次内存采样
type MemorySample struct {
	Total     uint64 // 系统总内存(字节)
	Available uint64 // 可用内存(字节)
}

// MemorySampler 内存采样函数
type MemorySampler func() (MemorySample, error)

// ResourceMonitor 系统资源监控器
// 职责: 在对象之间采样系统内存,内存不足时建议提前重启浏览器会话
type ResourceMonitor struct {
	// 可用内存下限(MB), 0表示关闭
	floorMB int

	sampler MemorySampler

	// 缓存的采样结果
	last     MemorySample
	lastTime time.Time
	mu       sync.RWMutex
}

// MemoryStatus 内存状态信息
type MemoryStatus struct {
	TotalMemory     uint64  // 系统总内存(字节)
	AvailableMemory uint64  // 可用内存(字节)
	FloorMemory     uint64  // 下限(字节)
	CPUUsage        float64 // CPU使用率(%)
	MemoryPressure  string  // 内存压力等级
}

// NewResourceMonitor 创建资源监控器实例
func NewResourceMonitor(floorMB int) *ResourceMonitor {
	return NewResourceMonitorWithSampler(floorMB, virtualMemorySample)
}

// NewResourceMonitorWithSampler 使用自定义采样函数创建监控器
func NewResourceMonitorWithSampler(floorMB int, sampler MemorySampler) *ResourceMonitor {
	return &ResourceMonitor{floorMB: floorMB, sampler: sampler}
}

// virtualMemorySample 使用gopsutil读取系统内存
func virtualMemorySample() (MemorySample, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return MemorySample{}, err
	}
	return MemorySample{Total: vm.Total, Available: vm.Available}, nil
}

// Enabled 是否启用内存检查
func (rm *ResourceMonitor) Enabled() bool {
	return rm != nil && rm.floorMB > 0
}

// Sample 采样一次并缓存
func (rm *ResourceMonitor) Sample() (MemorySample, error) {
	s, err := rm.sampler()
	if err != nil {
		return MemorySample{}, fmt.Errorf("获取系统内存失败: %w", err)
	}

	rm.mu.Lock()
	rm.last = s
	rm.lastTime = time.Now()
	rm.mu.Unlock()
	return s, nil
}

// ShouldRecycle 判断是否应该提前重启会话
// 采样失败时不重启
func (rm *ResourceMonitor) ShouldRecycle() (bool, string) {
	if !rm.Enabled() {
		return false, ""
	}

	s, err := rm.Sample()
	if err != nil {
		log.Warn().Err(err).Msg("内存采样失败,跳过检查")
		return false, ""
	}

	floor := uint64(rm.floorMB) * 1024 * 1024
	if s.Available < floor {
		availableMB := s.Available / (1024 * 1024)
		log.Warn().Msgf("可用内存不足(当前%dMB,下限%dMB),提前重启浏览器会话", availableMB, rm.floorMB)
		return true, fmt.Sprintf("内存不足(当前%dMB)", availableMB)
	}
	return false, ""
}

// GetMemoryStatus 获取最近一次采样的内存状态
func (rm *ResourceMonitor) GetMemoryStatus() MemoryStatus {
	rm.mu.RLock()
	s := rm.last
	rm.mu.RUnlock()

	floor := uint64(rm.floorMB) * 1024 * 1024
	var pressure string
	switch {
	case s.Total == 0:
		pressure = "unknown"
	case rm.floorMB > 0 && s.Available < floor:
		pressure = "critical"
	case rm.floorMB > 0 && s.Available < 2*floor:
		pressure = "warning"
	default:
		pressure = "normal"
	}

	return MemoryStatus{
		TotalMemory:     s.Total,
		AvailableMemory: s.Available,
		FloorMemory:     floor,
		CPUUsage:        cpuUsage(),
		MemoryPressure:  pressure,
	}
}

// cpuUsage 获取所有CPU核心的平均使用率
func cpuUsage() float64 {
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(percentages) == 0 {
		return 0.0
	}
	return percentages[0]
}
