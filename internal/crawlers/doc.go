// Package crawlers 提供IEA国家电力页面的数据文件采集功能
//
// # 概述
//
// crawlers包负责单个采集对象(国家)的完整页面生命周期:导航、等待就绪、逐级滚动触发
// 图表渲染、提取页面内嵌的CSV下载链接、分类、去重并落盘。批量调度和会话轮换由core包负责。
//
// # 核心组件
//
// ## Session (页面渲染会话)
//
// 采集逻辑只依赖一组窄接口: Navigate / ExecuteScript / QueryElements / GetAttribute / Close。
//
//   - RodSession: 基于go-rod的Chromium会话,可选go-rod/stealth页面
//   - SnapshotSession: 基于goquery的离线会话,读取已保存的HTML页面
//
// 浏览器或连接已不可用时,RodSession返回会话失效类型的错误(models.FaultSessionInvalidated),
// 调用方需要替换会话。
//
//	factory := NewRodSessionFactory(RodSessionConfigFrom(cfg))
//	session, err := factory()
//	if err != nil { /* 处理错误 */ }
//	defer session.Close()
//
// ## Extractor (数据文件提取器)
//
// 只考虑 a[download][href^="data:text/csv"] 元素,内容已完整内嵌在页面中,无需再次请求。
// 没有匹配元素时返回空列表而不是错误。
//
// ## Classifier (分类器)
//
// 有序规则列表,第一个命中的规则决定结果:
//  1. 区域对比 (north america / regional) → 丢弃
//  2. 人均 (per capita) → 丢弃
//  3. 标题含年份且内容少于1000字符 → 丢弃
//  4. generation + source → generation
//  5. emission + power generation → emissions
//  6. final consumption + sector → final_consumption
//  7. 内容含 electricity, + import + export, 或 .csv结尾且内容含 import/export → imports_exports
//  8. total + production 且内容多于500字符 → total_production
//
// 长度阈值按字符计数,来自models.Thresholds。
//
// ## Dedupe (去重)
//
// 同一槽位只保留内容最长的候选,等长时保留先出现的。
//
// ## SubjectHarvester (对象采集器)
//
// 状态机: navigating → settling → scrolling → extracting → classifying → persisting → succeeded/failed
//
//	harvester := NewSubjectHarvester(cfg, "data/iea_scraped")
//	outcome, err := harvester.Harvest(session, "canada")
//	if models.IsSessionInvalidated(err) {
//	    // 替换会话后重试
//	}
//
// 输出布局: <输出目录>/<对象>/<槽位>.csv,内容为解码后的原始CSV文本。
//
// ## ResourceMonitor (资源监控器)
//
// 在对象之间采样系统可用内存(gopsutil),低于memory_floor_mb时建议提前重启浏览器会话。
//
// # 并发
//
// 单线程顺序处理: 同一时刻只有一个会话,且只交给一个Harvest调用使用。
package crawlers
