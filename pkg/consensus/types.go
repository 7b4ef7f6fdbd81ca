// Copyright 2025 BPI Labs
//
// Package consensus implements the IBFT-style block consensus state
// machine: validator set management, BLS-aggregated commits, leader
// rotation, and view change on liveness loss or equivocation.

package consensus

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"
)

// ValidatorRole distinguishes voting validators from observers that
// receive finalized blocks but never vote.
type ValidatorRole string

const (
	RoleValidator ValidatorRole = "validator"
	RoleObserver  ValidatorRole = "observer"
)

// ValidatorInfo is the consensus engine's view of one validator: its
// network identity, voting weight, and liveness.
type ValidatorInfo struct {
	ValidatorID    string        `json:"validator_id"`
	PublicKey      string        `json:"public_key"`
	NetworkAddress string        `json:"network_address"`
	VotingPower    int64         `json:"voting_power"`
	Role           ValidatorRole `json:"role"`
	LastHeartbeat  time.Time     `json:"last_heartbeat"`
	IsActive       bool          `json:"is_active"`
	JoinedAt       time.Time     `json:"joined_at"`
}

// Priority distinguishes urgency of internally queued consensus work
// (e.g. a view-change triggered by equivocation evidence outranks one
// triggered by a plain timer).
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// GenerateRequestID derives a short, content-addressed id for an
// internally tracked request (a vote batch, a view-change attempt).
func GenerateRequestID(requestType, requester string) string {
	timestamp := time.Now().UnixNano()
	data := fmt.Sprintf("%s_%s_%d", requestType, requester, timestamp)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}

// ValidateThreshold reports whether approveCount/totalCount meets or
// exceeds the given threshold fraction.
func ValidateThreshold(approveCount, totalCount int, threshold float64) bool {
	if totalCount == 0 {
		return false
	}
	return float64(approveCount)/float64(totalCount) >= threshold
}

// CalculateRequiredCount returns the minimum count needed to meet
// threshold out of total, rounding up and requiring at least one.
func CalculateRequiredCount(total int, threshold float64) int {
	required := int(math.Ceil(float64(total) * threshold))
	if required == 0 && total > 0 {
		required = 1
	}
	return required
}

// IsByzantineFaultTolerant reports whether a validator set of
// totalValidators can tolerate maxFaults Byzantine members under the
// n >= 3f + 1 bound.
func IsByzantineFaultTolerant(totalValidators, maxFaults int) bool {
	return totalValidators >= 3*maxFaults+1
}
