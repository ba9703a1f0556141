package feestrategy

import (
	"sort"
	"sync"
	"sync/atomic"

	"dex-trader-sol/internal/consts"
	"dex-trader-sol/internal/logic/domain"
)

// snapshot 只读视图，发布后不再修改
type snapshot struct {
	entries map[domain.FeeStrategyKey][]domain.FeeStrategyValue
}

func (s *snapshot) clone() *snapshot {
	next := &snapshot{entries: make(map[domain.FeeStrategyKey][]domain.FeeStrategyValue, len(s.entries)+4)}
	for k, v := range s.entries {
		next.entries[k] = v
	}
	return next
}

// Table 按 (通道类别, 交易方向) 存储优先费配置
// 读方无锁读取当前快照；写方串行地复制、修改、整体替换
type Table struct {
	current atomic.Pointer[snapshot]
	writeMu sync.Mutex
}

func NewTable() *Table {
	t := &Table{}
	t.current.Store(&snapshot{entries: map[domain.FeeStrategyKey][]domain.FeeStrategyValue{}})
	return t
}

func (t *Table) update(fn func(s *snapshot)) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	next := t.current.Load().clone()
	fn(next)
	t.current.Store(next)
}

func validate(cuLimit uint32) error {
	if cuLimit == 0 {
		return domain.NewParameterError("cu_limit", "must be greater than 0")
	}
	return nil
}

func validKind(kind domain.TradeKind) error {
	if !kind.Valid() {
		return domain.NewParameterError("kind", "unknown trade kind %d", kind)
	}
	return nil
}

// SetUniform 为所有通道类别同时设置买卖配置，一次替换完成
func (t *Table) SetUniform(cuLimit uint32, cuPrice, buyTip, sellTip uint64, dataSizeLimit uint32) error {
	if err := validate(cuLimit); err != nil {
		return err
	}
	t.update(func(s *snapshot) {
		for _, class := range consts.AllProviderClasses() {
			for _, kind := range []domain.TradeKind{domain.KindBuy, domain.KindSell} {
				tip := buyTip
				if kind == domain.KindSell {
					tip = sellTip
				}
				v := domain.FeeStrategyValue{
					Class:         class,
					Kind:          kind,
					Variant:       domain.VariantNormal,
					CULimit:       cuLimit,
					CUPrice:       cuPrice,
					TipLamports:   tip,
					DataSizeLimit: dataSizeLimit,
				}
				s.entries[v.Key()] = []domain.FeeStrategyValue{v}
			}
		}
	})
	return nil
}

// SetForClass 覆盖单个 key，之前的普通或双配置都会被替换
// Jito 的小费下限不在这里处理，原样保存
func (t *Table) SetForClass(class consts.ProviderClass, kind domain.TradeKind, cuLimit uint32, cuPrice, tip uint64, dataSizeLimit uint32) error {
	if err := validate(cuLimit); err != nil {
		return err
	}
	if err := validKind(kind); err != nil {
		return err
	}
	v := domain.FeeStrategyValue{
		Class:         class,
		Kind:          kind,
		Variant:       domain.VariantNormal,
		CULimit:       cuLimit,
		CUPrice:       cuPrice,
		TipLamports:   tip,
		DataSizeLimit: dataSizeLimit,
	}
	t.update(func(s *snapshot) {
		s.entries[v.Key()] = []domain.FeeStrategyValue{v}
	})
	return nil
}

// SetDual 设置一对关联配置（低小费高优先费 + 高小费低优先费），两笔交易分别发送以对冲费率波动
func (t *Table) SetDual(class consts.ProviderClass, kind domain.TradeKind, cuLimit uint32, lowPrice, highPrice, lowTip, highTip uint64, dataSizeLimit uint32) error {
	if err := validate(cuLimit); err != nil {
		return err
	}
	if err := validKind(kind); err != nil {
		return err
	}
	pair := []domain.FeeStrategyValue{
		{
			Class:         class,
			Kind:          kind,
			Variant:       domain.VariantLowTipHighPrice,
			CULimit:       cuLimit,
			CUPrice:       highPrice,
			TipLamports:   lowTip,
			DataSizeLimit: dataSizeLimit,
		},
		{
			Class:         class,
			Kind:          kind,
			Variant:       domain.VariantHighTipLowPrice,
			CULimit:       cuLimit,
			CUPrice:       lowPrice,
			TipLamports:   highTip,
			DataSizeLimit: dataSizeLimit,
		},
	}
	t.update(func(s *snapshot) {
		s.entries[domain.FeeStrategyKey{Class: class, Kind: kind}] = pair
	})
	return nil
}

// Update 在写锁内基于当前值计算新值并替换，读取与写入之间不会插入其他写操作
// fn 收到当前值的副本；返回 nil 表示不修改。返回值表示是否发生替换
func (t *Table) Update(class consts.ProviderClass, kind domain.TradeKind, fn func(current []domain.FeeStrategyValue) []domain.FeeStrategyValue) (bool, error) {
	if err := validKind(kind); err != nil {
		return false, err
	}
	key := domain.FeeStrategyKey{Class: class, Kind: kind}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	cur := t.current.Load()
	in := append([]domain.FeeStrategyValue(nil), cur.entries[key]...)
	next := fn(in)
	if next == nil {
		return false, nil
	}
	if len(next) == 0 || len(next) > 2 {
		return false, domain.NewParameterError("values", "expected 1 or 2 values, got %d", len(next))
	}
	for i := range next {
		if err := validate(next[i].CULimit); err != nil {
			return false, err
		}
		next[i].Class = class
		next[i].Kind = kind
	}

	snap := cur.clone()
	snap.entries[key] = next
	t.current.Store(snap)
	return true, nil
}

// Get 返回 0、1 或 2 条配置；返回的切片归调用方所有
func (t *Table) Get(class consts.ProviderClass, kind domain.TradeKind) []domain.FeeStrategyValue {
	values := t.current.Load().entries[domain.FeeStrategyKey{Class: class, Kind: kind}]
	if len(values) == 0 {
		return nil
	}
	out := make([]domain.FeeStrategyValue, len(values))
	copy(out, values)
	return out
}

func (t *Table) Remove(class consts.ProviderClass, kind domain.TradeKind) {
	t.update(func(s *snapshot) {
		delete(s.entries, domain.FeeStrategyKey{Class: class, Kind: kind})
	})
}

func (t *Table) Clear() {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.current.Store(&snapshot{entries: map[domain.FeeStrategyKey][]domain.FeeStrategyValue{}})
}

// List 按类别、方向、变体排序输出全部配置
func (t *Table) List() []domain.FeeStrategyValue {
	snap := t.current.Load()
	out := make([]domain.FeeStrategyValue, 0, len(snap.entries)*2)
	for _, values := range snap.entries {
		out = append(out, values...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Class != out[j].Class {
			return out[i].Class < out[j].Class
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Variant < out[j].Variant
	})
	return out
}

// Len key 的数量
func (t *Table) Len() int {
	return len(t.current.Load().entries)
}
