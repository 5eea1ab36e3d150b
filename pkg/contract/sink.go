package contract

// PartSink: 旋转引擎的落盘能力抽象。
// 约束：
//  1. OpenPart(i) 的 i 自 0 严格递增；同一时刻至多一个打开的 part；
//  2. WriteLine 原样透传（含行终止符），不改写内容；
//  3. ClosePart 保证 flush-then-close；未打开状态下为 no-op；
//  4. 实现不得延迟持有 line 的引用；
//  5. 无内部并发。
type PartSink interface {
	OpenPart(i PartIndex) error
	WriteLine(line string) error
	ClosePart() error
}
