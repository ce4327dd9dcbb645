package htserror

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	gerrors "github.com/grailbio/base/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{E(InvalidRange, "end before start", nil), InvalidRange},
		{fmt.Errorf("wrapped: %w", E(NotFound, "chrQ", nil)), NotFound},
		{gerrors.E(gerrors.NotExist, "s3://bucket/key"), NotFound},
		{gerrors.E(gerrors.TooManyTries, "gave up"), ServerError},
		{gerrors.E(gerrors.Invalid, "bad"), InvalidInput},
		{fmt.Errorf("plain"), ServerError},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, KindOf(test.err), test.err.Error())
	}
}

func TestErrorMessage(t *testing.T) {
	err := E(NotFound, "reference chrQ", fmt.Errorf("not in header"))
	assert.Equal(t, "NotFound: reference chrQ: not in header", err.Error())
	assert.True(t, Is(NotFound, err))
	assert.False(t, Is(NotFound, nil))
}

func TestWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, E(InvalidInput, "class=header with referenceName", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "InvalidInput", body.Htsget.Error)
	assert.Contains(t, body.Htsget.Message, "class=header")
}

func TestStatuses(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, NotFound.Status())
	assert.Equal(t, http.StatusForbidden, PermissionDenied.Status())
	assert.Equal(t, http.StatusInternalServerError, ServerError.Status())
	assert.Equal(t, "UnsupportedFormat", UnsupportedFormat.Code())
}
