package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vvharness/internal/capi"
)

var builtinTags = []string{"global_info", "user_dict_load", "user_dict_manipulate", "voice_model_metas"}

func TestList_Text(t *testing.T) {
	res := execute(t, &RootOptions{Environ: []string{}}, "", "list")
	require.NoError(t, res.err)
	assert.Equal(t, "global_info\nuser_dict_load\nuser_dict_manipulate\nvoice_model_metas\n", res.stdout)
}

func TestList_JSON(t *testing.T) {
	res := execute(t, &RootOptions{Environ: []string{}}, "", "list", "--format", "json")
	require.NoError(t, res.err)

	var resp struct {
		Status string   `json:"status"`
		Data   []string `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, builtinTags, resp.Data)
}

func TestList_Symbols(t *testing.T) {
	res := execute(t, &RootOptions{Environ: []string{}}, "", "list", "--symbols")
	require.NoError(t, res.err)

	lines := strings.Split(strings.TrimSuffix(res.stdout, "\n"), "\n")
	assert.Equal(t, capi.SymbolNames(), lines)
	assert.Contains(t, lines, "voicevox_get_version")
	assert.Contains(t, lines, "voicevox_user_dict_delete")
}
