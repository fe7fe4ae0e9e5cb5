package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrompter_Fields(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompterFrom(strings.NewReader("mongo\n\n s3cret \ny\n"), &out)

	typ, err := p.PromptField("Type", "")
	require.NoError(t, err)
	assert.Equal(t, "mongo", typ)

	port, err := p.PromptField("Port", "27017")
	require.NoError(t, err)
	assert.Equal(t, "27017", port)

	pw, err := p.PromptPassword()
	require.NoError(t, err)
	assert.Equal(t, " s3cret ", pw, "passwords are not trimmed")

	ok, err := p.Confirm("Save?")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, "Type: Port [27017]: Password: Save? [y/N]: ", out.String())
}

func TestPrompter_LastLineWithoutNewline(t *testing.T) {
	p := NewPrompterFrom(strings.NewReader("localhost"), &bytes.Buffer{})
	v, err := p.PromptField("Host", "")
	require.NoError(t, err)
	assert.Equal(t, "localhost", v)

	_, err = p.PromptField("User", "")
	assert.Error(t, err, "input exhausted")
}

func TestPrompter_ConfirmDefaultsToNo(t *testing.T) {
	p := NewPrompterFrom(strings.NewReader("\nmaybe\n"), &bytes.Buffer{})
	for i := 0; i < 2; i++ {
		ok, err := p.Confirm("Delete?")
		require.NoError(t, err)
		assert.False(t, ok)
	}
}
