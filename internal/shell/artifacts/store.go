// Package artifacts loads compiled contract artifacts (ABI and creation
// bytecode) produced by Hardhat or Foundry.
package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	ErrArtifactNotFound  = errors.New("artifact not found")
	ErrAmbiguousArtifact = errors.New("artifact name matches more than one file")
	ErrInvalidArtifact   = errors.New("invalid artifact")
)

// Artifact is a compiled contract ready to deploy.
type Artifact struct {
	Name     string
	Path     string
	ABI      abi.ABI
	Bytecode []byte
}

// Store resolves artifact references below a root directory and caches
// what it has parsed. It is safe for concurrent use.
//
// A reference is one of:
//   - a path ending in ".json", relative to the root unless absolute
//   - "File.sol:Name", matched against <...>/File.sol/Name.json
//   - a bare contract name, matched against any <...>/Name.json
type Store struct {
	dir string

	mu    sync.Mutex
	cache map[string]*Artifact
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		cache: make(map[string]*Artifact),
	}
}

// Load returns the artifact for ref.
func (s *Store) Load(ctx context.Context, ref string) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.cache[ref]; ok {
		return a, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.locate(ref)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", ref, err)
	}

	a, err := Parse(ref, raw)
	if err != nil {
		return nil, err
	}
	a.Path = path

	s.cache[ref] = a
	return a, nil
}

// ABI returns only the ABI of ref.
func (s *Store) ABI(ctx context.Context, ref string) (*abi.ABI, error) {
	a, err := s.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &a.ABI, nil
}

// =============================================================================
// Parsing
// =============================================================================

// artifactFile covers both layouts: Hardhat stores bytecode as a hex string,
// Foundry as {"object": "0x..."}.
type artifactFile struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
}

// Parse decodes a Hardhat or Foundry artifact.
func Parse(name string, raw []byte) (*Artifact, error) {
	var f artifactFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArtifact, name, err)
	}
	if len(f.ABI) == 0 {
		return nil, fmt.Errorf("%w: %s: missing abi", ErrInvalidArtifact, name)
	}

	parsed, err := abi.JSON(bytes.NewReader(f.ABI))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: abi: %v", ErrInvalidArtifact, name, err)
	}

	code, err := decodeBytecode(f.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: bytecode: %v", ErrInvalidArtifact, name, err)
	}

	if f.ContractName != "" {
		name = f.ContractName
	}
	return &Artifact{Name: name, ABI: parsed, Bytecode: code}, nil
}

func decodeBytecode(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err != nil {
		var obj struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, err
		}
		hexStr = obj.Object
	}

	if hexStr == "" || hexStr == "0x" {
		return nil, nil
	}
	if strings.Contains(hexStr, "__") {
		return nil, errors.New("unlinked library placeholder in bytecode")
	}
	if !strings.HasPrefix(hexStr, "0x") {
		hexStr = "0x" + hexStr
	}
	return hexutil.Decode(hexStr)
}

// =============================================================================
// Lookup
// =============================================================================

func (s *Store) locate(ref string) (string, error) {
	if strings.HasSuffix(ref, ".json") {
		path := ref
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.dir, path)
		}
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("%w: %s", ErrArtifactNotFound, ref)
		}
		return path, nil
	}

	source, name := "", ref
	if i := strings.LastIndex(ref, ":"); i >= 0 {
		source, name = ref[:i], ref[i+1:]
	}

	var matches []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "build-info" || d.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != name+".json" {
			return nil
		}
		if source != "" && filepath.Base(filepath.Dir(path)) != filepath.Base(source) {
			return nil
		}
		matches = append(matches, path)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search artifacts for %s: %w", ref, err)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s (searched %s)", ErrArtifactNotFound, ref, s.dir)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s: %s", ErrAmbiguousArtifact, ref, strings.Join(matches, ", "))
	}
}
