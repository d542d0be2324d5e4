package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tokenABI = `[{"type":"constructor","inputs":[{"name":"owner","type":"address"}],"stateMutability":"nonpayable"}]`

const hardhatToken = `{
  "_format": "hh-sol-artifact-1",
  "contractName": "Token",
  "sourceName": "contracts/Token.sol",
  "abi": ` + tokenABI + `,
  "bytecode": "0x60006000f3",
  "deployedBytecode": "0x"
}`

const foundryToken = `{
  "abi": ` + tokenABI + `,
  "bytecode": {"object": "0x60006000f3", "linkReferences": {}}
}`

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// =============================================================================
// Parse Tests
// =============================================================================

func TestParse_Hardhat(t *testing.T) {
	a, err := Parse("Token", []byte(hardhatToken))
	require.NoError(t, err)
	assert.Equal(t, "Token", a.Name)
	assert.Equal(t, []byte{0x60, 0x00, 0x60, 0x00, 0xf3}, a.Bytecode)
	require.Len(t, a.ABI.Constructor.Inputs, 1)
	assert.Equal(t, "owner", a.ABI.Constructor.Inputs[0].Name)
}

func TestParse_Foundry(t *testing.T) {
	a, err := Parse("Token", []byte(foundryToken))
	require.NoError(t, err)
	assert.Equal(t, "Token", a.Name)
	assert.Equal(t, []byte{0x60, 0x00, 0x60, 0x00, 0xf3}, a.Bytecode)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{`},
		{"missing abi", `{"bytecode": "0x00"}`},
		{"bad abi", `{"abi": [{"type": "function", "inputs": [{"type": "uint7"}]}]}`},
		{"bad hex", `{"abi": [], "bytecode": "0xzz"}`},
		{"unlinked library", `{"abi": [], "bytecode": "0x6000__$abc$__6000"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("X", []byte(tt.raw))
			assert.ErrorIs(t, err, ErrInvalidArtifact)
		})
	}
}

func TestParse_InterfaceHasNoBytecode(t *testing.T) {
	a, err := Parse("IToken", []byte(`{"abi": [], "bytecode": "0x"}`))
	require.NoError(t, err)
	assert.Empty(t, a.Bytecode)
}

// =============================================================================
// Store Tests
// =============================================================================

func TestStore_LoadByName(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "contracts/Token.sol/Token.json", hardhatToken)
	writeFile(t, root, "contracts/Token.sol/Token.dbg.json", `{"buildInfo": "x"}`)
	writeFile(t, root, "build-info/Token.json", `{}`)

	s := NewStore(root)
	a, err := s.Load(context.Background(), "Token")
	require.NoError(t, err)
	assert.Equal(t, path, a.Path)

	again, err := s.Load(context.Background(), "Token")
	require.NoError(t, err)
	assert.Same(t, a, again)
}

func TestStore_LoadBySourceAndName(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "A.sol/Token.json", hardhatToken)
	want := writeFile(t, root, "B.sol/Token.json", foundryToken)

	s := NewStore(root)
	_, err := s.Load(context.Background(), "Token")
	assert.ErrorIs(t, err, ErrAmbiguousArtifact)

	a, err := s.Load(context.Background(), "src/B.sol:Token")
	require.NoError(t, err)
	assert.Equal(t, want, a.Path)
}

func TestStore_LoadByPath(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "out/Token.sol/Token.json", foundryToken)

	s := NewStore(root)
	a, err := s.Load(context.Background(), "out/Token.sol/Token.json")
	require.NoError(t, err)
	assert.NotEmpty(t, a.Bytecode)

	_, err = s.Load(context.Background(), "out/Missing.json")
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestStore_NotFound(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.Load(context.Background(), "Nope")
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestStore_ABI(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Token.json", hardhatToken)

	parsed, err := NewStore(root).ABI(context.Background(), "Token")
	require.NoError(t, err)
	assert.Len(t, parsed.Constructor.Inputs, 1)
}
