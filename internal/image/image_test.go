package image

import (
	"testing"

	"github.com/specialistvlad/lazyinit/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValidImage(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	p := &Parser{Vermagic: "lazyinit-1"}

	info, err := p.Parse(ctx, []byte(`
module "wlan-driver" {
  version     = "2.1"
  description = "Wireless LAN"
  vermagic    = "lazyinit-1"
  depends     = ["cfg80211"]
}
`), "wlan.hcl", 0)
	require.NoError(t, err)
	assert.Equal(t, &Info{
		Name:        "wlan_driver",
		Version:     "2.1",
		Description: "Wireless LAN",
		Vermagic:    "lazyinit-1",
		Depends:     []string{"cfg80211"},
	}, info)
}

func TestParseNumericVersionIsConverted(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	info, err := (&Parser{}).Parse(ctx, []byte(`module "gpu" { version = 3 }`), "gpu.hcl", 0)
	require.NoError(t, err)
	assert.Equal(t, "3", info.Version)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		flags   Flags
		wantErr error
		msg     string
	}{
		{name: "empty", src: "", wantErr: ErrInvalidImage, msg: "empty image"},
		{name: "syntax", src: `module "a" {`, wantErr: ErrInvalidImage},
		{name: "no module", src: `other = 1`, wantErr: ErrInvalidImage, msg: "unexpected top-level attributes other"},
		{name: "two modules", src: "module \"a\" {}\nmodule \"b\" {}", wantErr: ErrInvalidImage, msg: "found 2"},
		{name: "bad name", src: `module "a.b" {}`, wantErr: ErrInvalidImage, msg: "invalid module name"},
		{name: "unknown attribute", src: `module "a" { license = "GPL" }`, wantErr: ErrInvalidImage, msg: `unsupported attribute "license"`},
		{name: "bad depends", src: `module "a" { depends = "x" }`, wantErr: ErrInvalidImage, msg: `attribute "depends"`},
		{name: "vermagic mismatch", src: `module "a" { vermagic = "other" }`, wantErr: ErrInvalidImage, msg: "does not match"},
		{name: "unknown flags", src: `module "a" {}`, flags: 1 << 7, wantErr: ErrInvalidFlags},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _ := testutil.LogContext(t)
			_, err := (&Parser{Vermagic: "lazyinit-1"}).Parse(ctx, []byte(tt.src), "test.hcl", tt.flags)
			require.ErrorIs(t, err, tt.wantErr)
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestParseIgnoreVermagic(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	info, err := (&Parser{Vermagic: "lazyinit-1"}).Parse(ctx, []byte(`module "a" { vermagic = "other" }`), "a.hcl", FlagIgnoreVermagic)
	require.NoError(t, err)
	assert.Equal(t, "a", info.Name)
}

func TestParseTooLarge(t *testing.T) {
	ctx, _ := testutil.LogContext(t)
	_, err := (&Parser{MaxSize: 8}).Parse(ctx, []byte(`module "toolong" {}`), "a.hcl", 0)
	require.ErrorIs(t, err, ErrImageTooLarge)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "snd_soc_core", Normalize("snd-soc-core"))
	assert.Equal(t, "plain", Normalize("plain"))
}
