// Copyright 2017-2020, Square, Inc.

// Package test provides helper functions for tests.
package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/square/xferplan/job"
)

// MakeHTTPRequest is a helper function for making an http request. The response
// body of the http request is unmarshalled into the struct pointed to by the
// respStruct argument (if it's not nil). The status code of the response and
// the response headers are returned.
func MakeHTTPRequest(httpVerb, url string, payload []byte, respStruct interface{}) (int, http.Header, error) {
	var statusCode int
	// Make the http request.
	req, err := http.NewRequest(httpVerb, url, bytes.NewReader(payload))
	if err != nil {
		return statusCode, http.Header{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := (http.DefaultClient).Do(req)
	if err != nil {
		return statusCode, http.Header{}, err
	}
	defer res.Body.Close()

	if respStruct != nil {
		decoder := json.NewDecoder(res.Body)
		err = decoder.Decode(respStruct)
		if err != nil {
			return res.StatusCode, res.Header, fmt.Errorf("error decoding response body")
		}
	}

	return res.StatusCode, res.Header, nil
}

// InitFiles returns count files f1..fN moving from file:///data at srcSite to
// gsiftp://<destSite>/scratch.
func InitFiles(count int, srcSite, destSite string) []*job.FileTransfer {
	files := make([]*job.FileTransfer, count)
	for i := 1; i <= count; i++ {
		lfn := fmt.Sprintf("f%d", i)
		files[i-1] = &job.FileTransfer{
			LFN:          lfn,
			Sources:      []job.URL{{Site: srcSite, PFN: "file:///data/" + lfn}},
			Destinations: []job.URL{{Site: destSite, PFN: "gsiftp://" + destSite + "/scratch/" + lfn}},
		}
	}
	return files
}
