package utils

import (
	"encoding/binary"
	"fmt"

	"google.golang.org/protobuf/proto"
)

const recordTypeSize = 4

// EncodeRecord 带类型前缀的 protobuf 编码：
// - 前 4 字节为记录类型（uint32，小端序）
// - 后续为 protobuf 序列化数据
func EncodeRecord(recordType uint32, msg proto.Message) ([]byte, error) {
	const extraBuffer = 32

	size := proto.Size(msg)
	buf := make([]byte, recordTypeSize, recordTypeSize+size+extraBuffer)
	binary.LittleEndian.PutUint32(buf[:recordTypeSize], recordType)

	opts := proto.MarshalOptions{Deterministic: true}
	result, err := opts.MarshalAppend(buf, msg)
	if err != nil {
		return nil, fmt.Errorf("EncodeRecord: marshal %T: %w", msg, err)
	}
	return result, nil
}

// DecodeRecord 解析类型前缀并反序列化到 msg
func DecodeRecord(data []byte, msg proto.Message) (uint32, error) {
	if len(data) < recordTypeSize {
		return 0, fmt.Errorf("DecodeRecord: data too short: %d", len(data))
	}
	recordType := binary.LittleEndian.Uint32(data[:recordTypeSize])
	if err := proto.Unmarshal(data[recordTypeSize:], msg); err != nil {
		return recordType, fmt.Errorf("DecodeRecord: unmarshal %T: %w", msg, err)
	}
	return recordType, nil
}
