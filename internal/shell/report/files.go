package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// =============================================================================
// JSON File
// =============================================================================

// JSONFile writes the summary as JSON to a file.
type JSONFile struct {
	Path string
}

type jsonContract struct {
	Name     string `json:"name"`
	Artifact string `json:"artifact"`
	Address  string `json:"address"`
	TxHash   string `json:"tx_hash"`
}

type jsonSummary struct {
	RunID      string            `json:"run_id,omitempty"`
	Plan       string            `json:"plan"`
	ChainID    uint64            `json:"chain_id"`
	Deployer   string            `json:"deployer"`
	Status     string            `json:"status"`
	Error      string            `json:"error,omitempty"`
	FinishedAt time.Time         `json:"finished_at"`
	Contracts  []jsonContract    `json:"contracts"`
	Addresses  map[string]string `json:"addresses"`
}

// Report implements Reporter.
func (j JSONFile) Report(ctx context.Context, s Summary) error {
	out := jsonSummary{
		RunID:      s.RunID,
		Plan:       s.Plan,
		ChainID:    s.ChainID,
		Deployer:   s.Deployer,
		Status:     s.Status(),
		FinishedAt: s.FinishedAt,
		Contracts:  make([]jsonContract, 0, len(s.Results)),
		Addresses:  make(map[string]string, len(s.Results)),
	}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	for _, r := range s.Results {
		out.Contracts = append(out.Contracts, jsonContract{
			Name:     r.Unit,
			Artifact: r.Artifact,
			Address:  r.Address.Hex(),
			TxHash:   r.TxHash.Hex(),
		})
		out.Addresses[r.Unit] = r.Address.Hex()
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return writeFile(j.Path, append(data, '\n'))
}

// =============================================================================
// Env File
// =============================================================================

// EnvFile writes one NAME_ADDRESS=0x... line per deployed unit, in
// deployment order. Prefix is prepended to every key (e.g. "VITE_").
type EnvFile struct {
	Path   string
	Prefix string
}

// Report implements Reporter.
func (e EnvFile) Report(ctx context.Context, s Summary) error {
	var b strings.Builder
	if s.Err != nil {
		fmt.Fprintf(&b, "# run %s failed: %s\n", s.RunID, singleLine(s.Err.Error()))
	}
	for _, r := range s.Results {
		fmt.Fprintf(&b, "%s%s_ADDRESS=%s\n", e.Prefix, EnvName(r.Unit), r.Address.Hex())
	}
	return writeFile(e.Path, []byte(b.String()))
}

// EnvName converts a unit name to UPPER_SNAKE_CASE:
// "InsurancePolicyFactory" → "INSURANCE_POLICY_FACTORY", "ERC20Token" → "ERC20_TOKEN".
func EnvName(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			b.WriteRune('_')
			continue
		}
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteRune('_')
			}
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
