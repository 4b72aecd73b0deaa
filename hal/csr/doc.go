// Package csr implements the hal interfaces on the DiVA LiteX SoC.
//
// Peripherals are 32-bit CSRs at the addresses in the gateware's generated
// csr.h. [Board] and [UART] reach them through the [Register] interface,
// which *volatile.Register32 satisfies, so the same code runs against
// mapped hardware under TinyGo and against plain memory in tests. The
// interrupt pending and mask registers belong to the CPU and come in
// through [CPU]; on a VexRiscv build [VexRiscv] provides them.
package csr
