package radar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyProduct(t *testing.T) {
	cases := []struct {
		product string
		want    Category
	}{
		{"FileZilla", CategoryFileSharing},
		{"KeePass", CategoryPasswordManager},
		{"7-Zip", CategoryCompressionUtility},
		{"Slack", CategoryCommunication},
		{"TeamViewer", CategoryRemoteAccess},
		{"Mozilla Firefox", CategoryBrowser},
		{"VLC Media Player", CategoryMediaPlayer},
		{"ChatGPT Desktop", CategoryGenAITool},
		{"Some Unknown Tool", CategoryOther},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyProduct(tc.product), "product %q", tc.product)
	}
}

func TestClassifyProductCaseInsensitive(t *testing.T) {
	assert.Equal(t, ClassifyProduct("filezilla"), ClassifyProduct("FILEZILLA"))
}
