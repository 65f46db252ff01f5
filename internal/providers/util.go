package providers

import "encoding/base64"

func encodeB64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
