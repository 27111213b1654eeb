package campaign

import (
	"strings"
	"time"

	"github.com/mselser95/mm-oracle/pkg/types"
	"github.com/shopspring/decimal"
)

// Campaign is the on-chain funding of a campaign.
type Campaign struct {
	ChainID           int64           `json:"chainId"`
	Address           string          `json:"address"`
	FundAmount        decimal.Decimal `json:"fundAmount"`
	FundTokenDecimals int32           `json:"fundTokenDecimals"`
}

// Payout is one participant's reward.
type Payout struct {
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
}

// RewardsBatch mirrors one outcomes batch.
type RewardsBatch struct {
	ID      string   `json:"id"`
	Payouts []Payout `json:"payouts"`
}

// PeriodRewards is the distribution of one results period.
type PeriodRewards struct {
	From            time.Time       `json:"from"`
	To              time.Time       `json:"to"`
	DailyRewardPool decimal.Decimal `json:"dailyRewardPool"`
	// RewardPool is the daily pool scaled by min(1, achieved/target).
	RewardPool  decimal.Decimal `json:"rewardPool"`
	Distributed decimal.Decimal `json:"distributed"`
	Batches     []RewardsBatch  `json:"batches"`
}

// Rewards is the full computation for one campaign.
type Rewards struct {
	ChainID         int64           `json:"chainId"`
	Address         string          `json:"address"`
	DailyRewardPool decimal.Decimal `json:"dailyRewardPool"`
	Periods         []PeriodRewards `json:"periods"`
	Total           decimal.Decimal `json:"total"`
}

// DailyRewardPool returns fund / ceil(days(start, end)), truncated to
// decimals.
func DailyRewardPool(fund decimal.Decimal, start, end time.Time, decimals int32) (decimal.Decimal, error) {
	days := DurationDays(start, end)
	if days <= 0 {
		return decimal.Zero, &types.ArgumentError{Argument: "end_date", Message: "campaign must end after it starts"}
	}
	if fund.IsNegative() {
		return decimal.Zero, &types.ArgumentError{Argument: "fundAmount", Message: "must not be negative"}
	}

	pool, _ := fund.QuoRem(decimal.NewFromInt(days), decimals)
	return pool, nil
}

// PeriodRewardPool scales dailyPool by min(1, achieved/target), truncated
// to decimals. A missed target shrinks the pool; it is never raised.
func PeriodRewardPool(dailyPool, achieved, target decimal.Decimal, decimals int32) decimal.Decimal {
	if !achieved.IsPositive() || !target.IsPositive() {
		return decimal.Zero
	}
	if achieved.GreaterThanOrEqual(target) {
		return dailyPool.Truncate(decimals)
	}
	pool, _ := dailyPool.Mul(achieved).QuoRem(target, decimals)
	return pool
}

// ComputeRewards distributes each results period's pool among its
// participants in proportion to their score. Each payout is truncated to
// the fund token decimals, so a period never pays out more than its pool.
func ComputeRewards(c Campaign, m *Manifest, doc *ResultsDocument) (*Rewards, error) {
	if m == nil || doc == nil {
		return nil, &types.ArgumentError{Message: "manifest and results are required"}
	}
	if c.FundTokenDecimals < 0 {
		return nil, &types.ArgumentError{Argument: "fundTokenDecimals", Message: "must not be negative"}
	}
	if doc.Exchange != "" && !strings.EqualFold(doc.Exchange, m.Exchange) {
		return nil, &types.ArgumentError{Argument: "exchange", Message: "results exchange " + doc.Exchange + " does not match manifest exchange " + m.Exchange}
	}
	if c.Address != "" && doc.Address != "" && !strings.EqualFold(c.Address, doc.Address) {
		return nil, &types.ArgumentError{Argument: "address", Message: "results belong to campaign " + doc.Address}
	}

	decimals := c.FundTokenDecimals
	dailyPool, err := DailyRewardPool(c.FundAmount, m.StartDate, m.EndDate, decimals)
	if err != nil {
		return nil, err
	}

	rewards := &Rewards{
		ChainID:         c.ChainID,
		Address:         c.Address,
		DailyRewardPool: dailyPool,
		Periods:         make([]PeriodRewards, 0, len(doc.Results)),
		Total:           decimal.Zero,
	}

	target := m.DailyTarget()
	for _, period := range doc.Results {
		pr := distributePeriod(period, dailyPool, target, decimals)
		rewards.Total = rewards.Total.Add(pr.Distributed)
		rewards.Periods = append(rewards.Periods, pr)
	}
	return rewards, nil
}

func distributePeriod(period IntermediateResult, dailyPool, target decimal.Decimal, decimals int32) PeriodRewards {
	pr := PeriodRewards{
		From:            period.From,
		To:              period.To,
		DailyRewardPool: dailyPool,
		RewardPool:      decimal.Zero,
		Distributed:     decimal.Zero,
		Batches:         []RewardsBatch{},
	}

	totalScore := decimal.Zero
	for _, batch := range period.Batches {
		for _, outcome := range batch.Results {
			totalScore = totalScore.Add(outcome.Score.Decimal)
		}
	}

	achieved := period.TotalVolume.Decimal
	if !achieved.IsPositive() || !totalScore.IsPositive() {
		return pr
	}

	pool := PeriodRewardPool(dailyPool, achieved, target, decimals)
	pr.RewardPool = pool

	for _, batch := range period.Batches {
		rb := RewardsBatch{ID: batch.ID, Payouts: make([]Payout, 0, len(batch.Results))}
		for _, outcome := range batch.Results {
			amount, _ := pool.Mul(outcome.Score.Decimal).QuoRem(totalScore, decimals)
			rb.Payouts = append(rb.Payouts, Payout{Address: outcome.Address, Amount: amount})
			pr.Distributed = pr.Distributed.Add(amount)
		}
		pr.Batches = append(pr.Batches, rb)
	}
	return pr
}
