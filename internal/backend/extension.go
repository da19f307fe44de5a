/*
 * This file is part of ASIO Bridge (https://github.com/openasio/asio-bridge-go).
 * Copyright (C) 2025 OpenASIO Authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package backend

// Extension is a host-API-specific stream settings block, modeled as a tagged
// variant keyed by host API type instead of an untyped byte blob.
type Extension interface {
	// ExtensionHostAPI names the host API the block is intended for. Opening
	// a stream on a device of a different host API rejects the block.
	ExtensionHostAPI() HostAPIType
}

// WASAPIStreamInfo requests WASAPI-specific stream behavior.
type WASAPIStreamInfo struct {
	// Exclusive requests exclusive-mode streaming.
	Exclusive bool
	// AutoConvert lets the OS mixer convert between the stream format and
	// the device format in shared mode.
	AutoConvert bool
}

// ExtensionHostAPI implements Extension.
func (WASAPIStreamInfo) ExtensionHostAPI() HostAPIType { return WASAPI }

// RawExtension carries a foreign extension block in the raw-bytes-plus-header
// shape used by external backend ABIs. It is forwarded unmodified when the
// backend implementation can hand it to the native library, and rejected
// otherwise.
type RawExtension struct {
	HostAPI HostAPIType
	Version int
	Data    []byte
}

// ExtensionHostAPI implements Extension.
func (r RawExtension) ExtensionHostAPI() HostAPIType { return r.HostAPI }
