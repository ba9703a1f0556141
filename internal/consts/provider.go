package consts

import (
	"fmt"
	"strings"
)

// ProviderClass 加速通道类别
type ProviderClass uint8

const (
	ProviderDefault      ProviderClass = iota // 0 普通 RPC 节点
	ProviderJito                              // 1
	ProviderNextBlock                         // 2
	ProviderZeroSlot                          // 3
	ProviderTemporal                          // 4
	ProviderBloxroute                         // 5
	ProviderNode1                             // 6
	ProviderFlashBlock                        // 7
	ProviderBlockRazor                        // 8
	ProviderAstralane                         // 9
	ProviderStellium                          // 10
	ProviderLightspeed                        // 11
	ProviderSoyas                             // 12
	ProviderSpeedlanding                      // 13
)

var ProviderNames = []string{
	"Default",      // 0
	"Jito",         // 1
	"NextBlock",    // 2
	"ZeroSlot",     // 3
	"Temporal",     // 4
	"Bloxroute",    // 5
	"Node1",        // 6
	"FlashBlock",   // 7
	"BlockRazor",   // 8
	"Astralane",    // 9
	"Stellium",     // 10
	"Lightspeed",   // 11
	"Soyas",        // 12
	"Speedlanding", // 13
}

// AllProviderClasses 按枚举顺序返回全部类别
func AllProviderClasses() []ProviderClass {
	out := make([]ProviderClass, len(ProviderNames))
	for i := range ProviderNames {
		out[i] = ProviderClass(i)
	}
	return out
}

func (c ProviderClass) String() string {
	if int(c) < len(ProviderNames) {
		return ProviderNames[c]
	}
	return fmt.Sprintf("Unknown(%d)", uint8(c))
}

// ParseProviderClass 大小写不敏感
func ParseProviderClass(s string) (ProviderClass, error) {
	for i, name := range ProviderNames {
		if strings.EqualFold(name, s) {
			return ProviderClass(i), nil
		}
	}
	return 0, fmt.Errorf("unknown provider class %q", s)
}

// MinTipLamports 返回类别的小费下限，仅 Jito 非零
func (c ProviderClass) MinTipLamports() uint64 {
	if c == ProviderJito {
		return JitoMinTipLamports
	}
	return 0
}

// EnforcesTipFloor 是否需要在组装时把小费抬到下限
func (c ProviderClass) EnforcesTipFloor() bool {
	return c.MinTipLamports() > 0
}
