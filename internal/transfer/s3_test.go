package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStoragePath(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantBucket string
		wantPrefix string
		wantErr    bool
	}{
		{
			name:       "product path",
			path:       "/eodata/Sentinel-1/SAR/IW_SLC__1S/2024/05/01/S1A_IW_SLC__1SDV.SAFE",
			wantBucket: "eodata",
			wantPrefix: "Sentinel-1/SAR/IW_SLC__1S/2024/05/01/S1A_IW_SLC__1SDV.SAFE",
		},
		{
			name:       "trailing slash",
			path:       "/eodata/Sentinel-2/MSI/L2A/tile/",
			wantBucket: "eodata",
			wantPrefix: "Sentinel-2/MSI/L2A/tile",
		},
		{
			name:       "no leading slash",
			path:       "eodata/Sentinel-3/OLCI/x",
			wantBucket: "eodata",
			wantPrefix: "Sentinel-3/OLCI/x",
		},
		{name: "bucket only", path: "/eodata", wantErr: true},
		{name: "bucket with empty prefix", path: "/eodata/", wantErr: true},
		{name: "empty", path: "", wantErr: true},
		{name: "root", path: "/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, prefix, err := SplitStoragePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantPrefix, prefix)
		})
	}
}
