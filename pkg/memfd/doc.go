// Package memfd 把被测程序复制到只读的内存文件中，通过 execveat 执行
// 程序在运行期间被改写或删除时不影响执行，也不会遇到 ETXTBSY
//
// 需要 Linux >= 3.17
package memfd
