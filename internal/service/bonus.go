package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"staking-reward-engine/internal/metrics"
	"staking-reward-engine/internal/models"
	"staking-reward-engine/internal/referral"
	"staking-reward-engine/internal/repository"
	"staking-reward-engine/pkg/errors"
	"staking-reward-engine/pkg/logger"
)

var hundred = decimal.NewFromInt(100)

// MatchingLevels 对碰奖层级数，第k级取推荐树第k+1层（k从1开始）
const MatchingLevels = 3

// LevelDetail 单个层级的奖金明细，用于审计展示
type LevelDetail struct {
	Stream          models.BonusStream `json:"stream"`
	Level           int                `json:"level"`
	Depth           int                `json:"depth"`
	Members         int                `json:"members"`
	Percentage      decimal.Decimal    `json:"percentage"`
	SourceTotal     decimal.Decimal    `json:"source_total"`
	Bonus           decimal.Decimal    `json:"bonus"`
	BalancePortion  decimal.Decimal    `json:"balance_portion"`
	CoinPortionUSDT decimal.Decimal    `json:"coin_portion_usdt"`
	Coin            decimal.Decimal    `json:"coin"`
}

type StreamResult struct {
	Stream          models.BonusStream `json:"stream"`
	Total           decimal.Decimal    `json:"total"`
	BalancePortion  decimal.Decimal    `json:"balance_portion"`
	CoinPortionUSDT decimal.Decimal    `json:"coin_portion_usdt"`
	Coin            decimal.Decimal    `json:"coin"`
	Levels          []LevelDetail      `json:"levels"`
}

func (r *StreamResult) add(d LevelDetail) {
	r.Total = r.Total.Add(d.Bonus)
	r.BalancePortion = r.BalancePortion.Add(d.BalancePortion)
	r.CoinPortionUSDT = r.CoinPortionUSDT.Add(d.CoinPortionUSDT)
	r.Coin = r.Coin.Add(d.Coin)
	r.Levels = append(r.Levels, d)
}

func newStream(stream models.BonusStream) StreamResult {
	return StreamResult{
		Stream:          stream,
		Total:           decimal.Zero,
		BalancePortion:  decimal.Zero,
		CoinPortionUSDT: decimal.Zero,
		Coin:            decimal.Zero,
	}
}

// Breakdown 会员三类奖金的完整计算结果
type Breakdown struct {
	MemberID      uint64            `json:"member_id"`
	Tier          models.MemberTier `json:"tier"`
	CoinPrice     decimal.Decimal   `json:"coin_price"`
	Referral      StreamResult      `json:"referral"`
	Matching      StreamResult      `json:"matching"`
	Loyalty       StreamResult      `json:"loyalty"`
	TotalUSDT     decimal.Decimal   `json:"total_usdt"`
	TotalBalance  decimal.Decimal   `json:"total_balance"`
	TotalCoin     decimal.Decimal   `json:"total_coin"`
	DepositCoin   decimal.Decimal   `json:"deposit_coin"`
	StakeableCoin decimal.Decimal   `json:"stakeable_coin"`
	TreeDepth     int               `json:"tree_depth"`
	Truncated     bool              `json:"truncated"`
	ComputedAt    time.Time         `json:"computed_at"`
}

// MaterializeResult 批量物化的统计
type MaterializeResult struct {
	Members      int         `json:"members"`
	Materialized int         `json:"materialized"`
	Errored      int         `json:"errored"`
	Errors       []ItemError `json:"errors,omitempty"`
}

type BonusService struct {
	store    *repository.Store
	maxDepth int
	now      Clock
}

func NewBonusService(store *repository.Store, maxDepth int, now Clock) *BonusService {
	if maxDepth <= 0 {
		maxDepth = referral.DefaultMaxDepth
	}
	if now == nil {
		now = systemClock
	}
	return &BonusService{store: store, maxDepth: maxDepth, now: now}
}

// Split 按全局比例把奖金拆分为余额部分和币部分（均为USDT计价）
func Split(total decimal.Decimal, settings *models.BonusSettings) (balance, coin decimal.Decimal) {
	balance = total.Mul(settings.BalanceSplit).Div(hundred)
	coin = total.Mul(settings.CoinSplit).Div(hundred)
	return balance, coin
}

// bonusSnapshot 单次计算使用的配置和推荐树，每次调用重新读取
type bonusSnapshot struct {
	settings *models.BonusSettings
	tree     *referral.Tree
	members  map[uint64]models.Member
	prices   map[models.MemberTier]decimal.Decimal
}

func (s *BonusService) loadSnapshot(ctx context.Context) (*bonusSnapshot, error) {
	settings, err := s.store.Settings.GetBonusSettings(ctx)
	if err != nil {
		return nil, errors.New(errors.ErrBonusCalc, "读取奖金配置失败", err)
	}
	if settings == nil {
		return nil, errors.New(errors.ErrConfigMissing, "奖金配置不存在", nil)
	}

	members, err := s.store.Members.ListAll(ctx)
	if err != nil {
		return nil, errors.New(errors.ErrBonusCalc, "读取会员失败", err)
	}

	prices, err := s.store.Settings.CoinPrices(ctx)
	if err != nil {
		return nil, errors.New(errors.ErrBonusCalc, "读取币价失败", err)
	}

	byID := make(map[uint64]models.Member, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}

	return &bonusSnapshot{
		settings: settings,
		tree:     referral.BuildTree(members),
		members:  byID,
		prices:   prices,
	}, nil
}

// Compute 重新计算会员的推荐奖、对碰奖和忠诚奖，不写入任何数据
func (s *BonusService) Compute(ctx context.Context, memberID uint64) (*Breakdown, error) {
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	member, ok := snap.members[memberID]
	if !ok {
		return nil, errors.New(errors.ErrNotFound, fmt.Sprintf("会员 %d 不存在", memberID), nil)
	}
	return s.computeFor(ctx, snap, member)
}

func (s *BonusService) computeFor(ctx context.Context, snap *bonusSnapshot, member models.Member) (*Breakdown, error) {
	price := snap.prices[member.Tier]
	if !price.IsPositive() {
		return nil, errors.New(errors.ErrBonusCalc,
			fmt.Sprintf("会员等级 %s 未配置有效币价", member.Tier), nil)
	}

	walk := snap.tree.Levels(member.ID, s.maxDepth)
	if walk.Truncated {
		metrics.TreeWalkTruncatedTotal.Inc()
	}

	b := &Breakdown{
		MemberID:   member.ID,
		Tier:       member.Tier,
		CoinPrice:  price,
		Referral:   newStream(models.StreamReferral),
		Matching:   newStream(models.StreamMatching),
		Loyalty:    newStream(models.StreamLoyalty),
		TreeDepth:  walk.Depth(),
		Truncated:  walk.Truncated,
		ComputedAt: normalize(s.now()),
	}

	if err := s.referralBonus(ctx, snap.settings, walk, price, &b.Referral); err != nil {
		return nil, err
	}
	if err := s.matchingBonus(ctx, snap.settings, walk, price, &b.Matching); err != nil {
		return nil, err
	}
	if err := s.loyaltyBonus(ctx, snap.settings, walk, price, &b.Loyalty); err != nil {
		return nil, err
	}

	depositCoin, err := s.store.Deposits.SumCompletedCoin(ctx, member.ID)
	if err != nil {
		return nil, errors.New(errors.ErrBonusCalc, "统计充值币数量失败", err)
	}

	b.TotalUSDT = b.Referral.Total.Add(b.Matching.Total).Add(b.Loyalty.Total)
	b.TotalBalance = b.Referral.BalancePortion.Add(b.Matching.BalancePortion).Add(b.Loyalty.BalancePortion)
	b.TotalCoin = b.Referral.Coin.Add(b.Matching.Coin).Add(b.Loyalty.Coin)
	b.DepositCoin = depositCoin
	b.StakeableCoin = depositCoin.Add(b.TotalCoin)

	return b, nil
}

// referralBonus 直推奖：第0层下级已完成充值之和 × 推荐比例
func (s *BonusService) referralBonus(ctx context.Context, settings *models.BonusSettings, walk referral.Walk, price decimal.Decimal, out *StreamResult) error {
	members := walk.Level(0)
	deposits, err := s.store.Deposits.SumCompletedByMembers(ctx, members)
	if err != nil {
		return errors.New(errors.ErrBonusCalc, "统计直推充值失败", err)
	}
	out.add(splitDetail(models.StreamReferral, 0, 0, len(members), settings.ReferralPercentage, deposits, settings, price))
	return nil
}

// matchingBonus 对碰奖：第k级取推荐树第k层（直推为第0层）的充值之和
func (s *BonusService) matchingBonus(ctx context.Context, settings *models.BonusSettings, walk referral.Walk, price decimal.Decimal, out *StreamResult) error {
	for level := 1; level <= MatchingLevels; level++ {
		members := walk.Level(level)
		deposits, err := s.store.Deposits.SumCompletedByMembers(ctx, members)
		if err != nil {
			return errors.New(errors.ErrBonusCalc, fmt.Sprintf("统计第%d级对碰充值失败", level), err)
		}
		out.add(splitDetail(models.StreamMatching, level, level, len(members), settings.MatchingPercentage(level), deposits, settings, price))
	}
	return nil
}

// loyaltyBonus 忠诚奖：各层下级已支付的复利质押收益，层级不限，全部折算为币
func (s *BonusService) loyaltyBonus(ctx context.Context, settings *models.BonusSettings, walk referral.Walk, price decimal.Decimal, out *StreamResult) error {
	for depth := 0; depth < walk.Depth(); depth++ {
		members := walk.Level(depth)
		paid, err := s.store.Schedules.SumPaidByMembers(ctx, models.PositionTypeMultiplier, members)
		if err != nil {
			return errors.New(errors.ErrBonusCalc, fmt.Sprintf("统计第%d层复利收益失败", depth), err)
		}

		pct := settings.LoyaltyPercentage(depth)
		bonus := paid.Mul(pct).Div(hundred)
		out.add(LevelDetail{
			Stream:          models.StreamLoyalty,
			Level:           depth,
			Depth:           depth,
			Members:         len(members),
			Percentage:      pct,
			SourceTotal:     paid,
			Bonus:           bonus,
			BalancePortion:  decimal.Zero,
			CoinPortionUSDT: bonus,
			Coin:            bonus.Div(price),
		})
	}
	return nil
}

func splitDetail(stream models.BonusStream, level, depth, members int, pct, source decimal.Decimal, settings *models.BonusSettings, price decimal.Decimal) LevelDetail {
	bonus := source.Mul(pct).Div(hundred)
	balance, coinUSDT := Split(bonus, settings)
	return LevelDetail{
		Stream:          stream,
		Level:           level,
		Depth:           depth,
		Members:         members,
		Percentage:      pct,
		SourceTotal:     source,
		Bonus:           bonus,
		BalancePortion:  balance,
		CoinPortionUSDT: coinUSDT,
		Coin:            coinUSDT.Div(price),
	}
}

// Materialize 重新计算并覆盖写入会员的奖金明细和余额中的奖金部分
func (s *BonusService) Materialize(ctx context.Context, memberID uint64) (*Breakdown, error) {
	b, err := s.Compute(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, b); err != nil {
		metrics.BonusMaterializedTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.BonusMaterializedTotal.WithLabelValues("ok").Inc()
	return b, nil
}

// MaterializeAll 为全部会员物化奖金，单个会员失败不影响其他会员
func (s *BonusService) MaterializeAll(ctx context.Context) (*MaterializeResult, error) {
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(snap.members))
	for id := range snap.members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result := &MaterializeResult{Members: len(ids)}
	for _, id := range ids {
		b, err := s.computeFor(ctx, snap, snap.members[id])
		if err == nil {
			err = s.persist(ctx, b)
		}
		if err != nil {
			result.Errored++
			result.Errors = append(result.Errors, itemError("member", id, err))
			metrics.BonusMaterializedTotal.WithLabelValues("error").Inc()
			logger.WithFields(map[string]interface{}{
				"member_id": id,
			}).WithError(err).Error("奖金物化失败")
			continue
		}
		result.Materialized++
		metrics.BonusMaterializedTotal.WithLabelValues("ok").Inc()
	}

	logger.WithFields(map[string]interface{}{
		"members":      result.Members,
		"materialized": result.Materialized,
		"errored":      result.Errored,
	}).Info("奖金物化完成")

	return result, nil
}

func (s *BonusService) persist(ctx context.Context, b *Breakdown) error {
	var records []models.BonusRecord
	for _, stream := range []StreamResult{b.Referral, b.Matching, b.Loyalty} {
		for _, d := range stream.Levels {
			records = append(records, models.BonusRecord{
				MemberID:        b.MemberID,
				Stream:          d.Stream,
				Level:           d.Level,
				Depth:           d.Depth,
				Percentage:      d.Percentage,
				SourceTotal:     d.SourceTotal,
				BonusUSDT:       d.Bonus,
				BalancePortion:  d.BalancePortion,
				CoinPortionUSDT: d.CoinPortionUSDT,
				CoinAmount:      d.Coin,
				ComputedAt:      b.ComputedAt,
			})
		}
	}

	return s.store.InTx(ctx, func(tx *repository.Store) error {
		if err := tx.Bonuses.Replace(ctx, b.MemberID, records); err != nil {
			return errors.New(errors.ErrBonusCalc, "写入奖金明细失败", err)
		}
		ok, err := tx.Balances.SetBonus(ctx, b.MemberID, b.TotalCoin, b.TotalBalance)
		if err != nil {
			return errors.New(errors.ErrBonusCalc, "更新奖金余额失败", err)
		}
		if !ok {
			return errors.New(errors.ErrInvalidState,
				fmt.Sprintf("会员 %d 奖金币减少后可用余额将为负", b.MemberID), nil)
		}
		return nil
	})
}

// Records 返回会员最近一次物化的奖金明细
func (s *BonusService) Records(ctx context.Context, memberID uint64) ([]models.BonusRecord, error) {
	return s.store.Bonuses.ListByMember(ctx, memberID)
}
