package indicator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveLocale(t *testing.T) {
	require.Equal(t, localeEnglish, resolveLocale("en_US.UTF-8"))
	require.Equal(t, localeEnglish, resolveLocale("fr_FR.UTF-8"))
	require.Equal(t, localeEnglish, resolveLocale(""))
	require.Equal(t, localeIcelandic, resolveLocale("is_IS.UTF-8"))
}

func TestIndicatorMessages(t *testing.T) {
	en := indicatorMessages(localeEnglish)
	require.Equal(t, "Listening…", en.listening)
	require.Equal(t, "Speech recognition error", en.errorText)

	is := indicatorMessages(localeIcelandic)
	require.Equal(t, "Hlusta…", is.listening)
	require.Equal(t, "Villa í talgreiningu", is.errorText)
}
