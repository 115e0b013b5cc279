// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package utils

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
)

// EncodeJSON 以缩进格式把 obj 编码到 w
func EncodeJSON(w io.Writer, obj interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	return enc.Encode(obj)
}

// EncodeJSONFile 编码 JSON 文件，path 为 - 时输出到标准输出。
// 先写临时文件再改名，中途失败不会留下不完整的文件
func EncodeJSONFile(path string, obj interface{}) error {
	if path == "-" {
		return EncodeJSON(os.Stdout, obj)
	}

	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err = EncodeJSON(f, obj); err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
