package htsticket

import (
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umccr/htsget-archive/internal/htsconstants"
	"github.com/umccr/htsget-archive/internal/slice"
)

func TestFromSlice(t *testing.T) {
	s := &slice.Slice{
		Header: []slice.Part{slice.Inline(htsconstants.ClassHeader, []byte("head"))},
		Parts: []slice.Part{
			slice.Range(htsconstants.ClassBody, 100, 199),
			slice.Inline(htsconstants.ClassBody, []byte{0, 1, 2}),
		},
		Footer: []slice.Part{slice.Inline(htsconstants.ClassBody, []byte("eof"))},
	}
	urls := FromSlice(s, "https://htsget.example.org/files/f1")
	require.Len(t, urls, 4)

	assert.Equal(t, DataURLPrefix+base64.StdEncoding.EncodeToString([]byte("head")), urls[0].URL)
	assert.Equal(t, htsconstants.ClassHeader, urls[0].Class)
	assert.Nil(t, urls[0].Headers)

	assert.Equal(t, "https://htsget.example.org/files/f1", urls[1].URL)
	assert.Equal(t, "bytes=100-199", urls[1].Headers.Range)
	assert.Equal(t, htsconstants.ClassBody, urls[1].Class)

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(urls[2].URL, DataURLPrefix))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2}, data)
}

func TestFinalizeTicket(t *testing.T) {
	w := httptest.NewRecorder()
	urls := []*URL{
		NewURL().SetURL("https://x/files/1").SetHeaders(NewHeaders().SetRangeHeader(0, 9)).SetClassBody(),
	}
	FinalizeTicket(htsconstants.FormatBAM, urls, w)

	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	ticket := got["htsget"].(map[string]interface{})
	assert.Equal(t, "BAM", ticket["format"])
	first := ticket["urls"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "bytes=0-9", first["headers"].(map[string]interface{})["Range"])
	assert.Equal(t, "body", first["class"])
}

func TestFinalizeEmptyTicket(t *testing.T) {
	w := httptest.NewRecorder()
	FinalizeTicket(htsconstants.FormatVCF, nil, w)
	assert.JSONEq(t, `{"htsget":{"format":"VCF","urls":[]}}`, w.Body.String())
}
