// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// http-loadgen is a tiny, dependency-free load generator for bytebeamd. It
// reuses HTTP connections (keep-alive) and runs concurrent workers, each
// repeating the full ticket lifecycle: mint, upload a small payload,
// download it back. It runs against a live bytebeamd instance so demo
// scripts can measure mint/upload/download throughput without external
// tooling.
//
// Usage example:
//
//	http-loadgen -base=http://127.0.0.1:8080 -n=2000 -c=16 -payload=4096
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

func main() {
	var (
		base       = flag.String("base", "http://127.0.0.1:8080", "bytebeamd base URL including scheme and host")
		N          = flag.Int("n", 2000, "total ticket cycles to run")
		conc       = flag.Int("c", 8, "number of concurrent workers")
		payloadLen = flag.Int("payload", 4096, "bytes to upload per cycle")
		timeout    = flag.Duration("timeout", 60*time.Second, "overall timeout for the loadgen run")
		connIdle   = flag.Duration("idle_timeout", 30*time.Second, "HTTP idle connection timeout")
		maxIdle    = flag.Int("max_idle", 256, "max idle connections total")
		maxIdlePer = flag.Int("max_idle_per_host", 256, "max idle connections per host")
	)
	flag.Parse()

	if *N <= 0 || *conc <= 0 {
		fmt.Fprintln(os.Stderr, "-n and -c must be > 0")
		os.Exit(2)
	}

	baseURL := strings.TrimRight(*base, "/")
	payload := bytes.Repeat([]byte{'b'}, *payloadLen)

	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        *maxIdle,
		MaxIdleConnsPerHost: *maxIdlePer,
		IdleConnTimeout:     *connIdle,
	}
	client := &http.Client{Transport: tr, Timeout: 10 * time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	var completed, failed int64

	worker := func(id, count int) {
		for i := 0; i < count; i++ {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if err := runCycle(ctx, client, baseURL, payload); err != nil {
				atomic.AddInt64(&failed, 1)
				time.Sleep(2 * time.Millisecond)
				continue
			}
			atomic.AddInt64(&completed, 1)
		}
	}

	per := *N / *conc
	rem := *N - per**conc
	var wg sync.WaitGroup
	wg.Add(*conc)
	for w := 0; w < *conc; w++ {
		count := per
		if w == *conc-1 {
			count += rem
		}
		go func(id, n int) {
			defer wg.Done()
			worker(id, n)
		}(w, count)
	}
	wg.Wait()

	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}
	ops := float64(completed) / elapsed.Seconds()
	fmt.Printf("LoadGen: N=%d c=%d go=%d completed=%d failed=%d Duration=%s Throughput=%.1f cycles/s\n",
		*N, *conc, runtime.GOMAXPROCS(0), completed, failed, elapsed.Truncate(time.Millisecond), ops)
}

// runCycle mints a ticket, uploads payload against it, and downloads it
// back, failing the cycle on any non-2xx response or body mismatch.
func runCycle(ctx context.Context, client *http.Client, baseURL string, payload []byte) error {
	mintReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/loadgen.bin", strings.NewReader(""))
	if err != nil {
		return err
	}
	mintReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	mintResp, err := client.Do(mintReq)
	if err != nil {
		return err
	}
	var ticket struct {
		Path      string `json:"path"`
		UploadKey string `json:"upload_key"`
	}
	err = json.NewDecoder(mintResp.Body).Decode(&ticket)
	mintResp.Body.Close()
	if err != nil {
		return err
	}
	if mintResp.StatusCode != http.StatusOK || ticket.Path == "" {
		return fmt.Errorf("mint status %d", mintResp.StatusCode)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormField("file")
	if err != nil {
		return err
	}
	if _, err := fw.Write(payload); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	uploadErrC := make(chan error, 1)
	go func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/"+ticket.Path+"/"+ticket.UploadKey, &body)
		if err != nil {
			uploadErrC <- err
			return
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())
		resp, err := client.Do(req)
		if err != nil {
			uploadErrC <- err
			return
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		if resp.StatusCode != http.StatusOK {
			uploadErrC <- fmt.Errorf("upload status %d", resp.StatusCode)
			return
		}
		uploadErrC <- nil
	}()

	downReq, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/"+ticket.Path+"/loadgen.bin?download=true", nil)
	if err != nil {
		return err
	}
	downResp, err := client.Do(downReq)
	if err != nil {
		return err
	}
	defer downResp.Body.Close()
	got, err := io.ReadAll(downResp.Body)
	if err != nil {
		return err
	}
	if downResp.StatusCode != http.StatusOK {
		return fmt.Errorf("download status %d", downResp.StatusCode)
	}
	if !bytes.Equal(got, payload) {
		return fmt.Errorf("downloaded %d bytes, want %d", len(got), len(payload))
	}

	return <-uploadErrC
}
