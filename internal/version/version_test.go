/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package version

import (
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

func TestParseBuildTimestamp(t *testing.T) {
	t.Parallel()

	require.True(t, parseBuildTimestamp("").IsZero())
	require.True(t, parseBuildTimestamp("yesterday").IsZero())
	require.Equal(t, time.Unix(1700000000, 0).UTC(), parseBuildTimestamp("1700000000"))
	require.Equal(t, 2024, parseBuildTimestamp("2024-03-01T10:00:00Z").Year())
}

func TestVersionOutputJSON(t *testing.T) {
	t.Parallel()

	out := VersionOutput{
		Version:   "1.2.3",
		BuildTime: Timestamp{time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		GoVersion: "go1.22.0",
		Platform:  "linux/amd64",
	}

	data, err := json.Marshal(out)
	require.NoError(t, err)
	require.JSONEq(t, `{"version":"1.2.3","buildTimestamp":"2024-03-01T10:00:00Z","goVersion":"go1.22.0","platform":"linux/amd64"}`, string(data))

	var decoded VersionOutput
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.True(t, out.BuildTime.Equal(decoded.BuildTime.Time))

	data, err = json.Marshal(VersionOutput{Version: DevelopmentVersion})
	require.NoError(t, err)
	require.Contains(t, string(data), `"buildTimestamp":null`)
}
